package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/John-Robertt/stampit/internal/app"
	"github.com/John-Robertt/stampit/internal/app/planner"
	"github.com/John-Robertt/stampit/internal/config"
	"github.com/John-Robertt/stampit/internal/domain"
	"github.com/John-Robertt/stampit/internal/infra/fsx"
	"github.com/John-Robertt/stampit/internal/logging"
	"github.com/John-Robertt/stampit/internal/scan"
	"github.com/John-Robertt/stampit/internal/stamp"
)

// Execute 执行一次 run（dry-run/write），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为文件级结果（单个文件失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, fs afero.Fs) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, fs, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, fs afero.Fs, obs Observer) domain.RunReport {
	log := logging.Get()
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      eff.Path,
		DryRun:    !eff.Write,
		Mode:      string(eff.Mode),
		Format:    eff.Format,
		StartedAt: started,
		Items:     make([]domain.FileResult, 0, 128),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	// scan
	scanStarted := time.Now()
	res, err := scan.Collect(fs, eff.Path, scan.Options{
		Recursive:    eff.Recursive,
		ExcludeDirs:  eff.ExcludeDirs,
		ExcludeFiles: eff.ExcludeFiles(),
	})
	if err != nil {
		code, ok := scan.IsPathError(err)
		if !ok {
			code = domain.ErrCodeIOFailed
		}
		log.Debug().Err(err).Str("path", eff.Path).Msg("扫描失败")
		rr.Items = append(rr.Items, syntheticFailed(code, err.Error()))
		return finish()
	}
	files := res.Candidates
	log.Debug().Int("files", len(files)).Int("hidden", res.Hidden).Msg("扫描完成")
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":  len(files),
			"hidden": res.Hidden,
		}, time.Since(scanStarted))
	}

	// resolve：只读，并发
	resolveStarted := time.Now()
	resolved, err := stamp.Resolver{
		Fs:         fs,
		Mode:       eff.Mode,
		ImagesOnly: eff.ImagesOnly,
		Workers:    eff.Concurrency,
	}.Resolve(ctx, files)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("解析时间戳失败：%v", err)))
		return finish()
	}
	if obs != nil {
		var fromExif, fromMtime, missing int
		for _, r := range resolved {
			switch {
			case r.ErrCode != "":
				missing++
			case r.Stamp.Source == domain.SourceExif:
				fromExif++
			default:
				fromMtime++
			}
		}
		obs.OnPhaseDone("resolve", map[string]any{
			"exif":     fromExif,
			"modified": fromMtime,
			"none":     missing,
		}, time.Since(resolveStarted))
	}

	// plan：按目录分组，组内确定性分配名字
	planStarted := time.Now()
	groups := app.GroupByDir(files)
	opts := planner.Options{
		Layout:         eff.Layout,
		KeepExtCase:    eff.KeepExtCase,
		SkipDuplicates: eff.SkipDuplicates,
		Fs:             fs,
	}
	plans := make([]domain.RenamePlan, 0, len(files))
	for _, g := range groups {
		st, e := planner.ReadDirState(fs, g.Dir)
		if e == nil {
			var ps []domain.RenamePlan
			ps, e = planner.PlanGroup(opts, files, resolved, g, st)
			if e == nil {
				plans = append(plans, ps...)
				continue
			}
		}
		log.Error().Err(e).Str("dir", g.Dir).Msg("规划失败")
		for _, idx := range g.FileIdx {
			plans = append(plans, domain.RenamePlan{
				SrcAbs:    files[idx].AbsPath,
				Status:    domain.FileStatusFailed,
				ErrorCode: domain.ErrCodeIOFailed,
				ErrorMsg:  fmt.Sprintf("读取目录失败：%v", e),
			})
		}
	}
	if obs != nil {
		var rename, unchanged, skipped int
		for _, p := range plans {
			switch p.Status {
			case domain.FileStatusPlanned:
				rename++
			case domain.FileStatusUnchanged:
				unchanged++
			default:
				skipped++
			}
		}
		obs.OnPhaseDone("plan", map[string]any{
			"dirs":      len(groups),
			"rename":    rename,
			"unchanged": unchanged,
			"skipped":   skipped,
		}, time.Since(planStarted))
		obs.OnPhaseDone("exec", map[string]any{
			"total": len(plans),
		}, 0)
	}

	// exec：串行，一次一个 rename，永不覆盖
	stopCode := ""
	for i, p := range plans {
		oneStarted := time.Now()

		if stopCode == "" && ctx.Err() != nil {
			stopCode = domain.ErrCodeCanceled
		}
		if stopCode != "" && p.Status == domain.FileStatusPlanned {
			p.Status = domain.FileStatusSkipped
			p.ErrorCode = stopCode
			p.ErrorMsg = stopMessage(stopCode)
		}

		if p.Status == domain.FileStatusPlanned && eff.Write {
			execOne(fs, &p)
		}

		fr := toFileResult(p)
		rr.Items = append(rr.Items, fr)
		logItem(fr)

		if fr.Status == domain.FileStatusFailed && eff.FailFast && stopCode == "" {
			stopCode = domain.ErrCodeAborted
		}
		if obs != nil {
			obs.OnItemDone(i+1, len(plans), fr, time.Since(oneStarted))
		}
	}

	return finish()
}

func execOne(fs afero.Fs, p *domain.RenamePlan) {
	if err := fsx.RenameNoReplace(fs, p.SrcAbs, p.DstAbs); err != nil {
		p.Status = domain.FileStatusFailed
		if fsx.IsTargetExists(err) {
			p.ErrorCode = domain.ErrCodeTargetConflict
		} else {
			p.ErrorCode = domain.ErrCodeRenameFailed
		}
		p.ErrorMsg = err.Error()
		return
	}
	p.Status = domain.FileStatusRenamed
}

func toFileResult(p domain.RenamePlan) domain.FileResult {
	fr := domain.FileResult{
		Src:       p.SrcAbs,
		Dst:       p.DstAbs,
		Status:    p.Status,
		ErrorCode: p.ErrorCode,
		ErrorMsg:  p.ErrorMsg,
	}
	if !p.Stamp.IsZero() {
		t := p.Stamp.Time
		fr.Stamp = &t
		fr.Source = string(p.Stamp.Source)
	}
	return fr
}

// logItem 只写 debug：失败条目由 CLI 汇总输出到 stderr，这里不重复。
func logItem(fr domain.FileResult) {
	logging.Get().Debug().
		Str("src", fr.Src).
		Str("dst", fr.Dst).
		Str("status", fr.Status).
		Str("code", fr.ErrorCode).
		Msg("处理完成")
}

func stopMessage(code string) string {
	if code == domain.ErrCodeCanceled {
		return "运行已取消，未执行"
	}
	return "前面的文件失败（fail-fast），未执行"
}

func syntheticFailed(code, msg string) domain.FileResult {
	return domain.FileResult{
		Src:       "",
		Dst:       "",
		Status:    domain.FileStatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
