package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Path:       "/abs/path",
		DryRun:     true,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []FileResult{
			{Src: "/abs/path/b.jpg", Status: FileStatusPlanned},
			{Src: "", Status: FileStatusFailed}, // 路径无效等合成项
			{Src: "/abs/path/a.jpg", Status: FileStatusUnchanged},
			{Src: "/abs/path/c.png", Status: FileStatusSkipped, ErrorCode: ErrCodeNoTimestamp},
		},
	}

	r.Finalize()

	// src=="" 必须排在最后。
	got := []string{r.Items[0].Src, r.Items[1].Src, r.Items[2].Src, r.Items[3].Src}
	if got[0] != "/abs/path/a.jpg" || got[1] != "/abs/path/b.jpg" || got[2] != "/abs/path/c.png" || got[3] != "" {
		t.Fatalf("items 排序不符合契约：%v", got)
	}
	if r.Summary.Planned != 1 || r.Summary.Unchanged != 1 || r.Summary.Skipped != 1 || r.Summary.Failed != 1 || r.Summary.Renamed != 0 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Summarize_KeepsOrder(t *testing.T) {
	r := RunReport{
		Items: []FileResult{
			{Src: "/z", Status: FileStatusRenamed},
			{Src: "/a", Status: FileStatusRenamed},
		},
	}
	r.Summarize()

	if r.Items[0].Src != "/z" || r.Items[1].Src != "/a" {
		t.Fatalf("Summarize 不应改变顺序：%+v", r.Items)
	}
	if r.Summary.Renamed != 2 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}
}

func TestRunReport_MarshalJSON_EmptyItemsIsArray(t *testing.T) {
	b, err := json.Marshal(RunReport{})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"items":[]`)) {
		t.Fatalf("items 为空时应输出 []：%s", string(b))
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"auto", "EXIF", " modified "} {
		if _, err := ParseMode(s); err != nil {
			t.Fatalf("ParseMode(%q) 不期望错误：%v", s, err)
		}
	}
	if _, err := ParseMode("ctime"); err == nil {
		t.Fatalf("期望 ctime 非法")
	}
	if _, err := ParseMode(""); err == nil {
		t.Fatalf("期望空 mode 非法")
	}
}

func TestIsHidden(t *testing.T) {
	if !IsHidden(".DS_Store") || !IsHidden("._IMG_1.jpg") {
		t.Fatalf("期望点开头的文件为隐藏文件")
	}
	if IsHidden("photo.jpg") || IsHidden("a.b") {
		t.Fatalf("普通文件不应视为隐藏")
	}
}
