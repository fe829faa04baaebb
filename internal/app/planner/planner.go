package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/afero"

	"github.com/John-Robertt/stampit/internal/domain"
	"github.com/John-Robertt/stampit/internal/infra/hashx"
	"github.com/John-Robertt/stampit/internal/logging"
	"github.com/John-Robertt/stampit/internal/stamp"
)

// ReadDirState 读取目录现状（只做 ReadDir，不读文件内容）。
// 若 dir 不存在，返回空状态且不报错。
func ReadDirState(fs afero.Fs, dir string) (domain.DirState, error) {
	st := domain.DirState{
		Dir:           dir,
		ExistingNames: map[string]struct{}{},
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return domain.DirState{}, err
	}
	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// Options 控制命名策略。
type Options struct {
	Layout         *strftime.Strftime
	KeepExtCase    bool
	SkipDuplicates bool
	// Fs 仅在 SkipDuplicates 时用于比较内容。
	Fs afero.Fs
}

// FormatName 生成 <strftime(t)><ext>；扩展名默认转小写，无扩展名时不带尾随的点。
func FormatName(layout *strftime.Strftime, t time.Time, ext string, keepCase bool) string {
	stem, ext := nameParts(layout, t, ext, keepCase)
	return stem + ext
}

// nameParts 分开返回主干与扩展名：主干本身可能含 '.'（例如 "%H.%M.%S"），
// 不能事后再用 filepath.Ext 拆分。
func nameParts(layout *strftime.Strftime, t time.Time, ext string, keepCase bool) (string, string) {
	if ext == "." {
		ext = ""
	}
	if !keepCase {
		ext = strings.ToLower(ext)
	}
	return layout.FormatString(t), ext
}

// PlanGroup 为同一目录下的候选生成确定性的重命名计划（不做任何写入）。
// 返回值与 g.FileIdx 一一对应。
//
// 规则：
// - 目标名等于当前名：unchanged（重复运行是幂等的）
// - 目标名已被占用（现有条目或本次更早的计划）：依次尝试 -1、-2……；探测到自身当前名时同样 unchanged
// - 占用判断不区分大小写：大小写不敏感的文件系统上 T.jpg 与现有的 T.JPG 是同一个条目
// - 本次运行中被改走的旧名不会被复用：dry-run 与实际执行的结果一致，前面的失败也不会导致后面的覆盖
func PlanGroup(opts Options, files []domain.Candidate, resolved []stamp.Result, g domain.DirGroup, st domain.DirState) ([]domain.RenamePlan, error) {
	log := logging.Get()

	used := make(map[string]struct{}, len(st.ExistingNames)+len(g.FileIdx))
	// holder 记录某个名字当前由哪个文件的内容占据（用于 skip_duplicates）。
	holder := make(map[string]string, len(st.ExistingNames)+len(g.FileIdx))
	for n := range st.ExistingNames {
		used[foldName(n)] = struct{}{}
		holder[foldName(n)] = filepath.Join(st.Dir, n)
	}

	plans := make([]domain.RenamePlan, 0, len(g.FileIdx))
	for _, idx := range g.FileIdx {
		if idx < 0 || idx >= len(files) || idx >= len(resolved) {
			return nil, fmt.Errorf("非法 file index：%d", idx)
		}
		c := files[idx]
		r := resolved[idx]

		p := domain.RenamePlan{SrcAbs: c.AbsPath, Stamp: r.Stamp}
		if r.ErrCode != "" {
			p.Status = domain.FileStatusSkipped
			if r.ErrCode == domain.ErrCodeIOFailed {
				p.Status = domain.FileStatusFailed
			}
			p.ErrorCode = r.ErrCode
			if r.Err != nil {
				p.ErrorMsg = r.Err.Error()
			}
			plans = append(plans, p)
			continue
		}

		stem, ext := nameParts(opts.Layout, r.Stamp.Time, c.Ext, opts.KeepExtCase)
		want := stem + ext
		if want == c.Name {
			p.Status = domain.FileStatusUnchanged
			p.DstAbs = c.AbsPath
			plans = append(plans, p)
			continue
		}

		_, taken := used[foldName(want)]
		if taken && strings.EqualFold(want, c.Name) {
			// 只差大小写：占位的是文件自己，直接改名。
			taken = false
		}
		if taken && opts.SkipDuplicates && opts.Fs != nil {
			other := holder[foldName(want)]
			same, err := hashx.SameContent(opts.Fs, c.AbsPath, other)
			if err != nil {
				log.Debug().Err(err).Str("file", c.AbsPath).Msg("比较内容失败，按普通冲突处理")
			}
			if same {
				p.Status = domain.FileStatusSkipped
				p.ErrorCode = domain.ErrCodeDuplicate
				p.ErrorMsg = fmt.Sprintf("与 %q 内容相同", other)
				plans = append(plans, p)
				continue
			}
		}

		name := allocName(stem, ext, c.Name, used)
		if name == c.Name {
			p.Status = domain.FileStatusUnchanged
			p.DstAbs = c.AbsPath
			plans = append(plans, p)
			continue
		}
		used[foldName(name)] = struct{}{}
		holder[foldName(name)] = c.AbsPath

		p.Status = domain.FileStatusPlanned
		p.DstAbs = filepath.Join(st.Dir, name)
		plans = append(plans, p)
	}
	return plans, nil
}

// allocName 在 used 中找一个空位：stem.ext、stem-1.ext、stem-2.ext……
// used 以 foldName 为键。探测到 own（文件自己的当前名，忽略大小写）时返回该候选：
// 与 own 完全相同即 unchanged，只差大小写则是一次仅改大小写的重命名。
func allocName(stem, ext, own string, used map[string]struct{}) string {
	for n := 0; ; n++ {
		cand := stem + ext
		if n > 0 {
			cand = stem + "-" + strconv.Itoa(n) + ext
		}
		if strings.EqualFold(cand, own) {
			return cand
		}
		if _, ok := used[foldName(cand)]; !ok {
			return cand
		}
	}
}

// foldName 是占用表的键。
func foldName(name string) string {
	return strings.ToLower(name)
}
