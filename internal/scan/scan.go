package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/John-Robertt/stampit/internal/domain"
)

// Options 控制扫描范围。
type Options struct {
	// Recursive 为 false 时只看目标目录的直接子文件。
	Recursive bool
	// ExcludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）。
	ExcludeDirs []string
	// ExcludeFiles 是必须跳过的绝对路径（配置文件、report 文件）。
	ExcludeFiles []string
}

// Result 是扫描结果；Hidden 只用于进度/日志统计，隐藏文件不会出现在 Candidates 中。
type Result struct {
	Root       string
	IsFile     bool
	Candidates []domain.Candidate
	Hidden     int
}

// PathError 表示目标路径本身不可用（不存在/既不是文件也不是目录）。
type PathError struct {
	Code string // domain.ErrCodePathNotFound | domain.ErrCodePathInvalid
	Path string
	Err  error
}

func (e *PathError) Error() string {
	switch e.Code {
	case domain.ErrCodePathNotFound:
		return fmt.Sprintf("路径 %q 不存在", e.Path)
	case domain.ErrCodePathInvalid:
		if e.Err != nil {
			return fmt.Sprintf("路径 %q 不可用：%v", e.Path, e.Err)
		}
		return fmt.Sprintf("路径 %q 既不是文件也不是目录", e.Path)
	default:
		return fmt.Sprintf("路径 %q：%v", e.Path, e.Err)
	}
}

func (e *PathError) Unwrap() error { return e.Err }

// Collect 收集 root 下的候选文件。
//
// 规则（硬约束）：
// - root 是文件：唯一候选（隐藏文件则结果为空，不报错）
// - root 是目录：跳过隐藏文件与 root 之下的隐藏目录；跳过非普通文件（符号链接等）
// - 扫描阶段只做 stat，不读文件内容
// - 输出按 RelPath 稳定排序
func Collect(fs afero.Fs, root string, opts Options) (Result, error) {
	root = filepath.Clean(root)

	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, &PathError{Code: domain.ErrCodePathNotFound, Path: root, Err: err}
		}
		return Result{}, &PathError{Code: domain.ErrCodePathInvalid, Path: root, Err: err}
	}

	res := Result{Root: root}
	switch {
	case fi.Mode().IsRegular():
		res.IsFile = true
		if domain.IsHidden(fi.Name()) {
			res.Hidden = 1
			return res, nil
		}
		res.Candidates = []domain.Candidate{newCandidate(root, filepath.Base(root), fi)}
		return res, nil
	case fi.IsDir():
	default:
		return Result{}, &PathError{Code: domain.ErrCodePathInvalid, Path: root}
	}

	excludedDirs := buildExcluded(root, opts.ExcludeDirs)
	excludedFiles := make(map[string]struct{}, len(opts.ExcludeFiles))
	for _, f := range opts.ExcludeFiles {
		excludedFiles[filepath.Clean(f)] = struct{}{}
	}

	files := make([]domain.Candidate, 0, 128)
	w := walker{
		fs:            fs,
		root:          root,
		opts:          opts,
		excludedDirs:  excludedDirs,
		excludedFiles: excludedFiles,
	}
	if err := w.walk(root, &files, &res.Hidden); err != nil {
		return Result{}, fmt.Errorf("扫描 %q 失败：%w", root, err)
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	res.Candidates = files
	return res, nil
}

func newCandidate(path, rel string, info os.FileInfo) domain.Candidate {
	name := info.Name()
	return domain.Candidate{
		AbsPath: path,
		RelPath: rel,
		Dir:     filepath.Dir(path),
		Name:    name,
		Ext:     filepath.Ext(name),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

type walker struct {
	fs            afero.Fs
	root          string
	opts          Options
	excludedDirs  []string
	excludedFiles map[string]struct{}
}

// walk 用 ReadDir 手动递归：root 本身可以是指向目录的符号链接，
// 但 root 之下的符号链接（文件或目录）一律不跟随。
func (w walker) walk(dir string, files *[]domain.Candidate, hidden *int) error {
	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return err
	}

	for _, info := range entries {
		path := filepath.Join(dir, info.Name())

		if info.IsDir() {
			// 隐藏目录（.git、.thumbnails、.Trashes 等）属于工具或系统，里面的文件不能改名。
			if domain.IsHidden(info.Name()) || !w.opts.Recursive || isExcluded(path, w.excludedDirs) {
				continue
			}
			if err := w.walk(path, files, hidden); err != nil {
				return err
			}
			continue
		}

		if domain.IsHidden(info.Name()) {
			*hidden++
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if _, ok := w.excludedFiles[path]; ok {
			continue
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		*files = append(*files, newCandidate(path, rel, info))
	}
	return nil
}

// IsPathError 判断 err 是否为目标路径错误，并返回其 error_code。
func IsPathError(err error) (string, bool) {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
