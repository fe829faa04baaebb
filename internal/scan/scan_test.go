package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/John-Robertt/stampit/internal/domain"
)

func TestCollect_SkipHiddenFilesAndDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/p/.DS_Store")
	touch(t, fs, "/p/photo.jpg")
	touch(t, fs, "/p/.git/objects/abc")
	touch(t, fs, "/p/sub/IMG_1.JPG")
	touch(t, fs, "/p/sub/._IMG_1.JPG")

	res, err := Collect(fs, "/p", Options{Recursive: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	got := rels(res.Candidates)
	want := []string{"photo.jpg", filepath.Join("sub", "IMG_1.JPG")}
	if !equal(got, want) {
		t.Fatalf("候选不符合预期：got=%v want=%v", got, want)
	}
	if res.Hidden != 2 {
		t.Fatalf("期望统计到 2 个隐藏文件，实际 %d", res.Hidden)
	}
	if res.Candidates[1].Ext != ".JPG" || res.Candidates[1].Dir != "/p/sub" {
		t.Fatalf("候选字段不正确：%+v", res.Candidates[1])
	}
}

func TestCollect_NonRecursive(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/p/a.jpg")
	touch(t, fs, "/p/sub/b.jpg")

	res, err := Collect(fs, "/p", Options{Recursive: false})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := rels(res.Candidates); !equal(got, []string{"a.jpg"}) {
		t.Fatalf("非递归时不应进入子目录：%v", got)
	}
}

func TestCollect_ExcludeDirsAndFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/p/raw/a.cr2")
	touch(t, fs, "/p/ok/b.jpg")
	touch(t, fs, "/p/stampit.yaml")
	touch(t, fs, "/p/report.json")

	res, err := Collect(fs, "/p", Options{
		Recursive:    true,
		ExcludeDirs:  []string{"raw"},
		ExcludeFiles: []string{"/p/stampit.yaml", "/p/./report.json"},
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := rels(res.Candidates); !equal(got, []string{filepath.Join("ok", "b.jpg")}) {
		t.Fatalf("排除规则未生效：%v", got)
	}
}

func TestCollect_SingleFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/p/IMG_1234.jpg")
	touch(t, fs, "/p/other.jpg")

	res, err := Collect(fs, "/p/IMG_1234.jpg", Options{Recursive: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.IsFile || len(res.Candidates) != 1 {
		t.Fatalf("单文件目标应只有一个候选：%+v", res)
	}
	c := res.Candidates[0]
	if c.AbsPath != "/p/IMG_1234.jpg" || c.RelPath != "IMG_1234.jpg" || c.Dir != "/p" {
		t.Fatalf("候选字段不正确：%+v", c)
	}
}

func TestCollect_SingleHiddenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/p/.DS_Store")

	res, err := Collect(fs, "/p/.DS_Store", Options{})
	if err != nil {
		t.Fatalf("隐藏文件不应报错：%v", err)
	}
	if len(res.Candidates) != 0 || res.Hidden != 1 {
		t.Fatalf("隐藏文件不应成为候选：%+v", res)
	}
}

func TestCollect_PathNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Collect(fs, "/nope", Options{})
	code, ok := IsPathError(err)
	if !ok || code != domain.ErrCodePathNotFound {
		t.Fatalf("期望 %q，实际 err=%v", domain.ErrCodePathNotFound, err)
	}
}

func TestCollect_SkipSymlinksOnDisk(t *testing.T) {
	root := t.TempDir()
	fs := afero.NewOsFs()
	touch(t, fs, filepath.Join(root, "a.jpg"))
	if err := os.Symlink(filepath.Join(root, "a.jpg"), filepath.Join(root, "link.jpg")); err != nil {
		t.Skipf("不支持符号链接：%v", err)
	}

	res, err := Collect(fs, root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := rels(res.Candidates); !equal(got, []string{"a.jpg"}) {
		t.Fatalf("符号链接不应成为候选：%v", got)
	}
}

func touch(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func rels(cs []domain.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.RelPath)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
