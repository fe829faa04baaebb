package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	FileStatusPlanned   = "planned"
	FileStatusRenamed   = "renamed"
	FileStatusUnchanged = "unchanged"
	FileStatusSkipped   = "skipped"
	FileStatusFailed    = "failed"
)

const (
	ErrCodeNoTimestamp    = "no_timestamp"
	ErrCodeNotImage       = "not_image"
	ErrCodeDuplicate      = "duplicate"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeRenameFailed   = "rename_failed"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeAborted        = "aborted"
	ErrCodeCanceled       = "canceled"
	ErrCodePathNotFound   = "path_not_found"
	ErrCodePathInvalid    = "path_invalid"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport 是对外稳定输出（--report 文件 / --json stdout）的结构。
// undo 依赖其中 renamed 条目的 src/dst 还原文件名。
type RunReport struct {
	RunID  string `json:"run_id"`
	UndoOf string `json:"undo_of,omitempty"`

	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`
	Mode   string `json:"mode,omitempty"`
	Format string `json:"format,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []FileResult  `json:"items"`
}

type ReportSummary struct {
	Planned   int `json:"planned"`
	Renamed   int `json:"renamed"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type FileResult struct {
	Src string `json:"src"`
	Dst string `json:"dst"`

	Source string     `json:"source,omitempty"`
	Stamp  *time.Time `json:"stamp,omitempty"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 src 字典序；src=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
//
// undo 报告需要保留倒序执行顺序，因此 undo 不调用排序，只调用 Summarize。
func (r *RunReport) Finalize() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Src
		b := r.Items[j].Src
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})
	r.Summarize()
}

// Summarize 只统一时间与重算 summary，不改变 items 顺序。
func (r *RunReport) Summarize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case FileStatusPlanned:
			s.Planned++
		case FileStatusRenamed:
			s.Renamed++
		case FileStatusUnchanged:
			s.Unchanged++
		case FileStatusSkipped:
			s.Skipped++
		case FileStatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []FileResult{}
	}
	return json.Marshal(Alias(r))
}
