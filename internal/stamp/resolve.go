package stamp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/John-Robertt/stampit/internal/domain"
	"github.com/John-Robertt/stampit/internal/logging"
)

// Result 是单个候选的解析结果，按候选下标存放。
//
// ErrCode 非空时 Stamp 无效：
// - no_timestamp / not_image：跳过（不是失败）
// - io_failed：失败
// - canceled：运行被取消，尚未处理
type Result struct {
	Stamp   domain.Stamp
	Kind    Kind
	ErrCode string
	Err     error
}

// Resolver 为候选推断时间戳。只读文件，因此可以并发。
type Resolver struct {
	Fs         afero.Fs
	Mode       domain.Mode
	ImagesOnly bool
	Workers    int
	// Location 为 nil 时使用 time.Local。
	Location *time.Location
}

// Resolve 用 ants 协程池并发解析，结果与 cands 一一对应。
// ctx 取消后尚未开始的候选标记为 canceled。
func (r Resolver) Resolve(ctx context.Context, cands []domain.Candidate) ([]Result, error) {
	results := make([]Result, len(cands))
	if len(cands) == 0 {
		return results, nil
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(cands) {
		workers = len(cands)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("创建 goroutine 池失败：%w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range cands {
		if ctx.Err() != nil {
			results[i] = Result{ErrCode: domain.ErrCodeCanceled, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				results[i] = Result{ErrCode: domain.ErrCodeCanceled, Err: ctx.Err()}
				return
			}
			results[i] = r.resolveOne(cands[i])
		}); err != nil {
			wg.Done()
			results[i] = Result{ErrCode: domain.ErrCodeIOFailed, Err: err}
		}
	}
	wg.Wait()
	return results, nil
}

func (r Resolver) resolveOne(c domain.Candidate) Result {
	log := logging.Get()
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}

	needContent := r.ImagesOnly || r.Mode != domain.ModeModified
	var (
		kind    Kind
		exifT   time.Time
		readErr error
	)
	if needContent {
		kind, exifT, readErr = r.readContent(c, loc)
		if readErr != nil {
			log.Debug().Err(readErr).Str("file", c.RelPath).Msg("读取文件内容失败")
		}
	}

	var ioErr *contentError
	if errors.As(readErr, &ioErr) {
		// 打不开/读不了：auto 模式仍可回退修改时间，其余情况记为失败。
		if r.ImagesOnly || r.Mode == domain.ModeExif {
			return Result{ErrCode: domain.ErrCodeIOFailed, Err: ioErr.Err}
		}
	}

	if r.ImagesOnly && !kind.IsImage {
		return Result{Kind: kind, ErrCode: domain.ErrCodeNotImage, Err: fmt.Errorf("不是图片（%s）", kindLabel(kind))}
	}

	if !exifT.IsZero() && r.Mode != domain.ModeModified {
		return Result{Kind: kind, Stamp: domain.Stamp{Time: exifT, Source: domain.SourceExif}}
	}
	if r.Mode == domain.ModeExif {
		err := readErr
		if err == nil {
			err = ErrNoExifDate
		}
		return Result{Kind: kind, ErrCode: domain.ErrCodeNoTimestamp, Err: err}
	}

	if c.ModTime.IsZero() {
		return Result{Kind: kind, ErrCode: domain.ErrCodeNoTimestamp, Err: errors.New("没有修改时间")}
	}
	return Result{Kind: kind, Stamp: domain.Stamp{Time: c.ModTime.In(loc), Source: domain.SourceModified}}
}

// contentError 表示文件本身读不了（区别于“读到了但没有 EXIF”）。
type contentError struct{ Err error }

func (e *contentError) Error() string { return e.Err.Error() }
func (e *contentError) Unwrap() error { return e.Err }

// readContent 只打开一次文件：先嗅探类型，再按需回到开头解 EXIF。
func (r Resolver) readContent(c domain.Candidate, loc *time.Location) (Kind, time.Time, error) {
	f, err := r.Fs.Open(c.AbsPath)
	if err != nil {
		return Kind{}, time.Time{}, &contentError{Err: err}
	}
	defer f.Close()

	kind, err := sniff(f)
	if err != nil {
		return Kind{}, time.Time{}, &contentError{Err: err}
	}
	where := containerOf(kind, c.Ext)
	if r.Mode == domain.ModeModified || where == exifNone {
		return kind, time.Time{}, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return kind, time.Time{}, &contentError{Err: err}
	}
	var t time.Time
	if where == exifEmbedded {
		t, err = ReadEmbeddedExifTime(f, loc)
	} else {
		t, err = ReadExifTime(f, loc)
	}
	if err != nil {
		return kind, time.Time{}, err
	}
	return kind, t, nil
}

func kindLabel(k Kind) string {
	if k.MIME == "" {
		return "未知类型"
	}
	return k.MIME
}
