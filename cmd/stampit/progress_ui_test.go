package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/stampit/internal/config"
	"github.com/John-Robertt/stampit/internal/domain"
)

func TestProgressUI_OnlyFailuresUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf, false)

	p.OnStart(config.EffectiveConfig{Path: "/p"})
	p.OnPhaseDone("scan", map[string]any{"files": 2, "hidden": 1}, time.Second)
	p.OnItemDone(1, 2, domain.FileResult{Src: "/p/a.jpg", Dst: "/p/T.jpg", Status: domain.FileStatusPlanned}, 0)
	p.OnItemDone(2, 2, domain.FileResult{Src: "/p/b.jpg", Status: domain.FileStatusFailed, ErrorCode: domain.ErrCodeRenameFailed, ErrorMsg: "permission denied"}, 0)

	out := buf.String()
	if !strings.Contains(out, "扫描: files=2 hidden=1 (1.0s)") {
		t.Fatalf("缺少扫描行：%q", out)
	}
	if strings.Contains(out, "a.jpg") {
		t.Fatalf("非 verbose 不应输出成功条目：%q", out)
	}
	if !strings.Contains(out, "[2/2] p/b.jpg FAIL rename_failed: permission denied") {
		t.Fatalf("失败条目格式不正确：%q", out)
	}
}

func TestProgressUI_VerboseItemLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf, true)

	p.OnItemDone(1, 3, domain.FileResult{Src: "/p/a.jpg", Dst: "/p/T.jpg", Status: domain.FileStatusRenamed, Source: "exif"}, 0)
	p.OnItemDone(2, 3, domain.FileResult{Src: "/p/T-1.jpg", Dst: "/p/T-1.jpg", Status: domain.FileStatusUnchanged}, 0)
	p.OnItemDone(3, 3, domain.FileResult{Src: "/p/x.txt", Status: domain.FileStatusSkipped, ErrorCode: domain.ErrCodeNotImage}, 0)

	out := buf.String()
	for _, want := range []string{
		"[1/3] p/a.jpg OK -> p/T.jpg source=exif",
		"[2/3] p/T-1.jpg SAME",
		"[3/3] p/x.txt SKIP not_image",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("缺少 %q：%q", want, out)
		}
	}
}

func TestLastTwo(t *testing.T) {
	cases := map[string]string{
		"/a/b/c/d.jpg": "c/d.jpg",
		"/d.jpg":       "d.jpg",
		"d.jpg":        "d.jpg",
		"":             "",
	}
	for in, want := range cases {
		if got := lastTwo(in); got != want {
			t.Fatalf("lastTwo(%q) 期望 %q，实际 %q", in, want, got)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3723 * time.Second); got != "01:02:03" {
		t.Fatalf("期望 01:02:03，实际 %q", got)
	}
}
