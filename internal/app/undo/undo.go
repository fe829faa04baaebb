package undo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/John-Robertt/stampit/internal/domain"
	"github.com/John-Robertt/stampit/internal/infra/fsx"
	"github.com/John-Robertt/stampit/internal/logging"
)

// ReadReport 读取一次运行写出的 report。
func ReadReport(fs afero.Fs, path string) (domain.RunReport, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return domain.RunReport{}, err
	}
	var rr domain.RunReport
	if err := json.Unmarshal(b, &rr); err != nil {
		return domain.RunReport{}, fmt.Errorf("report %q 无效：%w", path, err)
	}
	if rr.RunID == "" {
		return domain.RunReport{}, fmt.Errorf("report %q 缺少 run_id", path)
	}
	return rr, nil
}

// Execute 按倒序把 src.Items 中 renamed 的条目改回原名（dst -> src）。
//
// - write=false 时只规划（planned），不改动任何文件
// - 永不覆盖：src 已被占用或 dst 已不存在时，该条目失败
// - 输出 report 保留执行顺序（倒序），因此只 Summarize 不排序
func Execute(ctx context.Context, fs afero.Fs, src domain.RunReport, write bool) domain.RunReport {
	log := logging.Get()

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		UndoOf:    src.RunID,
		Path:      src.Path,
		DryRun:    !write,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.FileResult, 0, len(src.Items)),
	}

	for i := len(src.Items) - 1; i >= 0; i-- {
		it := src.Items[i]
		if it.Status != domain.FileStatusRenamed || it.Src == "" || it.Dst == "" {
			continue
		}

		// 反向：当前名是 it.Dst，要改回 it.Src。
		fr := domain.FileResult{Src: it.Dst, Dst: it.Src}

		switch {
		case ctx.Err() != nil:
			fr.Status = domain.FileStatusSkipped
			fr.ErrorCode = domain.ErrCodeCanceled
			fr.ErrorMsg = "运行已取消，未执行"
		default:
			checkOne(fs, &fr)
			if fr.Status == "" && write {
				if err := fsx.RenameNoReplace(fs, fr.Src, fr.Dst); err != nil {
					fr.Status = domain.FileStatusFailed
					fr.ErrorCode = domain.ErrCodeRenameFailed
					if fsx.IsTargetExists(err) {
						fr.ErrorCode = domain.ErrCodeTargetConflict
					}
					fr.ErrorMsg = err.Error()
				} else {
					fr.Status = domain.FileStatusRenamed
				}
			}
			if fr.Status == "" {
				fr.Status = domain.FileStatusPlanned
			}
		}

		log.Debug().Str("src", fr.Src).Str("dst", fr.Dst).Str("status", fr.Status).Str("code", fr.ErrorCode).Msg("撤销")
		rr.Items = append(rr.Items, fr)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Summarize()
	return rr
}

// checkOne 预检：当前文件必须存在，原名必须空闲。不满足时直接标记失败。
func checkOne(fs afero.Fs, fr *domain.FileResult) {
	if _, err := fs.Stat(fr.Src); err != nil {
		fr.Status = domain.FileStatusFailed
		if os.IsNotExist(err) {
			fr.ErrorCode = domain.ErrCodePathNotFound
			fr.ErrorMsg = fmt.Sprintf("文件 %q 已不存在", fr.Src)
			return
		}
		fr.ErrorCode = domain.ErrCodeIOFailed
		fr.ErrorMsg = err.Error()
		return
	}
	if _, err := fs.Stat(fr.Dst); err == nil {
		fr.Status = domain.FileStatusFailed
		fr.ErrorCode = domain.ErrCodeTargetConflict
		fr.ErrorMsg = fmt.Sprintf("原名 %q 已被占用，拒绝覆盖", fr.Dst)
	}
}
