package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/stampit/internal/app/run"
	"github.com/John-Robertt/stampit/internal/config"
	"github.com/John-Robertt/stampit/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// styles 绑定到具体 writer 的 renderer：非终端（管道、测试里的 buffer）自动退化为纯文本。
type styles struct {
	title lipgloss.Style
	dst   lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	skip  lipgloss.Style
	faint lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		dst:   r.NewStyle().Foreground(lipgloss.Color("86")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
		fail:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		skip:  r.NewStyle().Foreground(lipgloss.Color("241")),
		faint: r.NewStyle().Foreground(lipgloss.Color("241")).Faint(true),
	}
}

// progressUI 是交互终端下的进度输出。
//
// - 所有过程信息写到 stderr，不污染 stdout 的报告输出
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：大目录长时间无输出时定期打印一行进度
type progressUI struct {
	w       io.Writer
	st      styles
	verbose bool

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int
	skip  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, verbose bool) *progressUI {
	return &progressUI{
		w:                  w,
		st:                 newStyles(w),
		verbose:            verbose,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (不改动任何文件)"
	if eff.Write {
		mode = "write"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] %s (%s)\n", now.Format("15:04:05"), p.st.title.Render("stampit"), mode)
	if p.verbose {
		fmt.Fprintln(p.w, "配置（生效）:")
		fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
		fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
		fmt.Fprintf(p.w, "  timestamp: %s\n", eff.Mode)
		fmt.Fprintf(p.w, "  format: %s\n", eff.Format)
		fmt.Fprintf(p.w, "  recursive: %s\n", onOff(eff.Recursive))
		fmt.Fprintf(p.w, "  images_only: %s\n", onOff(eff.ImagesOnly))
		fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
		fmt.Fprintf(p.w, "  exclude_dirs: %s\n", formatStringListJSON(eff.ExcludeDirs))
		if eff.ConfigFile != "" {
			fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
		}
		if eff.Write && eff.Report != "" {
			fmt.Fprintf(p.w, "  report: %s\n", eff.Report)
		}
		fmt.Fprintln(p.w)
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d hidden=%d (%s)\n",
			intField(fields, "files"), intField(fields, "hidden"), formatShortDuration(dur),
		)
	case "resolve":
		fmt.Fprintf(p.w, "时间戳: exif=%d modified=%d none=%d (%s)\n",
			intField(fields, "exif"), intField(fields, "modified"), intField(fields, "none"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: dirs=%d rename=%d unchanged=%d skipped=%d (%s)\n",
			intField(fields, "dirs"),
			intField(fields, "rename"),
			intField(fields, "unchanged"),
			intField(fields, "skipped"),
			formatShortDuration(dur),
		)
	case "exec":
		p.total = intField(fields, "total")
		fmt.Fprintf(p.w, "执行: total=%d\n", p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.FileResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	switch res.Status {
	case domain.FileStatusFailed:
		p.fail++
	case domain.FileStatusSkipped:
		p.skip++
	default:
		p.ok++
	}

	// 非 verbose 时只输出失败条目，成功结果由最终摘要给出。
	if res.Status == domain.FileStatusFailed || p.verbose {
		fmt.Fprintln(p.w, p.formatItemLocked(idx, total, res, dur))
		p.lastPrinted = time.Now()
	}

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) formatItemLocked(idx, total int, res domain.FileResult, dur time.Duration) string {
	src := lastTwo(res.Src)
	switch res.Status {
	case domain.FileStatusFailed:
		return fmt.Sprintf("[%d/%d] %s %s %s: %s (%s)",
			idx, total, src, p.st.fail.Render("FAIL"), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	case domain.FileStatusSkipped:
		return fmt.Sprintf("[%d/%d] %s %s %s", idx, total, src, p.st.skip.Render("SKIP"), res.ErrorCode)
	case domain.FileStatusUnchanged:
		return fmt.Sprintf("[%d/%d] %s %s", idx, total, src, p.st.skip.Render("SAME"))
	default:
		status := "OK"
		if res.Status == domain.FileStatusPlanned {
			status = "PLAN"
		}
		source := ""
		if res.Source != "" {
			source = " source=" + res.Source
		}
		return fmt.Sprintf("[%d/%d] %s %s -> %s%s", idx, total, src, p.st.ok.Render(status), lastTwo(res.Dst), source)
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stopCh := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, p.skip, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// lastTwo 只保留路径最后两段（父目录/文件名），进度行不被长路径撑爆。
func lastTwo(p string) string {
	p = strings.TrimRight(p, "/\\")
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) <= 2 {
		return strings.Join(parts, "/")
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
