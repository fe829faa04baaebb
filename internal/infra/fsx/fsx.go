package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
// 上层可把它映射为 error_code=target_conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// TargetExistsError 表示重命名目标已存在。按产品契约：重命名永不覆盖。
type TargetExistsError struct {
	Src string
	Dst string
}

func (e *TargetExistsError) Error() string {
	return fmt.Sprintf("目标已存在，拒绝覆盖：%q -> %q", e.Src, e.Dst)
}

// IsTargetExists 判断 err 是否为“目标已存在/类型冲突”（两者都映射为 target_conflict）。
func IsTargetExists(err error) bool {
	var e *TargetExistsError
	return errors.As(err, &e) || IsPathTypeConflict(err)
}

// RenameNoReplace 在 fs 上把 src 重命名为 dst；若 dst 已存在则返回 *TargetExistsError。
//
// 注意：检查与 rename 之间存在竞态窗口（TOCTOU）。本工具是单进程串行执行，
// 窗口只可能被外部进程利用，这里不做更重的加锁。
func RenameNoReplace(fs afero.Fs, src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	fi, err := fs.Stat(dst)
	if err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !sameEntry(fs, src, dst, fi) {
			return &TargetExistsError{Src: src, Dst: dst}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return fs.Rename(src, dst)
}

// sameEntry 识别大小写不敏感文件系统上"只改大小写"的重命名：dst 解析到的就是 src 本身。
func sameEntry(fs afero.Fs, src, dst string, dstInfo os.FileInfo) bool {
	if !strings.EqualFold(filepath.Base(src), filepath.Base(dst)) || filepath.Dir(src) != filepath.Dir(dst) {
		return false
	}
	srcInfo, err := fs.Stat(src)
	if err != nil {
		return false
	}
	return os.SameFile(srcInfo, dstInfo)
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），若目标已存在则覆盖。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 临时文件前缀带 '.'：即使写在被扫描目录里，也会被当作隐藏文件跳过
// - fsync 是可选但推荐：我们对临时文件做 Sync；目录 Sync 采用 best-effort
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644)
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)
	if fi, err := os.Lstat(dst); err == nil && fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
