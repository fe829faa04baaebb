package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/stampit/internal/domain"
)

func TestLoadEffective_Defaults(t *testing.T) {
	isolateHome(t)
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Path: "photos"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != filepath.Join(cwd, "photos") {
		t.Fatalf("期望 path=%q，实际=%q", filepath.Join(cwd, "photos"), eff.Path)
	}
	if eff.Mode != domain.ModeAuto || eff.Format != DefaultFormat || eff.Write || !eff.Recursive {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.Concurrency != DefaultConcurrency || eff.LogLevel != DefaultLogLevel {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.ConfigFile != "" || len(eff.ExcludeFiles()) != 0 {
		t.Fatalf("未使用配置文件时不应有排除文件：%+v", eff)
	}

	got := eff.Layout.FormatString(time.Date(2023, 12, 31, 17, 32, 54, 0, time.Local))
	if got != "2023-12-31_17.32.54" {
		t.Fatalf("默认格式输出不符合预期：%q", got)
	}
}

func TestLoadEffective_MissingPath(t *testing.T) {
	isolateHome(t)

	_, err := LoadEffective(t.TempDir(), CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_DiscoverInTargetDir(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	cfg := filepath.Join(root, "stampit.yaml")
	writeFile(t, cfg, []byte("mode: exif\nwrite: true\nconcurrency: 99\nexclude_dirs: [\"raw\", \" \"]\nreport: reports/last.json\n"))

	eff, err := LoadEffective(t.TempDir(), CLIArgs{Path: root})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigFile != cfg {
		t.Fatalf("期望 config=%q，实际=%q", cfg, eff.ConfigFile)
	}
	if eff.Mode != domain.ModeExif || !eff.Write {
		t.Fatalf("配置文件值未生效：%+v", eff)
	}
	if eff.Concurrency != 32 {
		t.Fatalf("期望 concurrency 截断为 32，实际 %d", eff.Concurrency)
	}
	if len(eff.ExcludeDirs) != 1 || eff.ExcludeDirs[0] != "raw" {
		t.Fatalf("exclude_dirs 规范化不正确：%v", eff.ExcludeDirs)
	}
	// 配置中的 report 相对配置文件所在目录。
	if want := filepath.Join(root, "reports", "last.json"); eff.Report != want {
		t.Fatalf("期望 report=%q，实际=%q", want, eff.Report)
	}
	if len(eff.ExcludeFiles()) != 2 {
		t.Fatalf("配置文件与 report 都应被排除：%v", eff.ExcludeFiles())
	}
}

func TestLoadEffective_DiscoverBesideTargetFile(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "stampit.json"), []byte(`{"keep_ext_case": true}`))
	writeFile(t, filepath.Join(root, "IMG_1.JPG"), []byte("x"))

	eff, err := LoadEffective(root, CLIArgs{Path: "IMG_1.JPG"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.KeepExtCase {
		t.Fatalf("目标是文件时应读取其所在目录的配置：%+v", eff)
	}
}

func TestLoadEffective_CLIOverridesConfig(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "stampit.json"), []byte(`{"write":true,"mode":"exif","recursive":false,"format":"%Y%m%d"}`))

	eff, err := LoadEffective(root, CLIArgs{
		Path:         root,
		Write:        false,
		WriteSet:     true, // --write=false
		Mode:         domain.ModeModified,
		ModeSet:      true,
		Recursive:    true,
		RecursiveSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Write {
		t.Fatalf("期望 --write=false 覆盖配置")
	}
	if eff.Mode != domain.ModeModified || !eff.Recursive {
		t.Fatalf("CLI 覆盖未生效：%+v", eff)
	}
	// 未显式指定的项仍取配置文件。
	if eff.Format != "%Y%m%d" {
		t.Fatalf("期望 format 来自配置，实际 %q", eff.Format)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	isolateHome(t)
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{Path: cwd, ConfigFile: "nope.yaml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_InvalidConfigFile(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "stampit.json"), []byte(`{`))

	_, err := LoadEffective(root, CLIArgs{Path: root})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_InvalidMode(t *testing.T) {
	isolateHome(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "stampit.json"), []byte(`{"mode":"ctime"}`))

	_, err := LoadEffective(root, CLIArgs{Path: root})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_InvalidFormats(t *testing.T) {
	isolateHome(t)
	cwd := t.TempDir()

	for _, f := range []string{"", "%Y/%m/%d", ".%Y", "%Q"} {
		_, err := LoadEffective(cwd, CLIArgs{Path: cwd, Format: f, FormatSet: true})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("format=%q 期望 %q，实际 err=%v", f, ErrCodeInvalid, err)
		}
	}
}

func TestLoadEffective_VerboseForcesDebug(t *testing.T) {
	isolateHome(t)
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Path: cwd, Verbose: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.LogLevel != "debug" {
		t.Fatalf("期望 log_level=debug，实际 %q", eff.LogLevel)
	}
}

func TestLoadEffective_CLIReportRelativeToCwd(t *testing.T) {
	isolateHome(t)
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Path: cwd, Report: "r.json", ReportSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if want := filepath.Join(cwd, "r.json"); eff.Report != want {
		t.Fatalf("期望 report=%q，实际=%q", want, eff.Report)
	}
}

func TestLoadEffective_LogFileExcludedFromScan(t *testing.T) {
	isolateHome(t)
	cwd := t.TempDir()
	root := filepath.Join(cwd, "photos")

	eff, err := LoadEffective(cwd, CLIArgs{Path: root, LogFile: "photos/stampit.log", LogFileSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := filepath.Join(root, "stampit.log")
	if eff.LogFile != want {
		t.Fatalf("期望 log_file=%q，实际=%q", want, eff.LogFile)
	}
	ex := eff.ExcludeFiles()
	if len(ex) != 1 || ex[0] != want {
		t.Fatalf("日志文件应出现在排除列表中：%v", ex)
	}

	// 配置文件中的 log_file 相对配置文件所在目录。
	writeFile(t, filepath.Join(root, "stampit.yaml"), []byte("log_file: logs/run.log\n"))
	eff, err = LoadEffective(t.TempDir(), CLIArgs{Path: root})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if want := filepath.Join(root, "logs", "run.log"); eff.LogFile != want {
		t.Fatalf("期望 log_file=%q，实际=%q", want, eff.LogFile)
	}
}

// isolateHome 避免读到开发机上真实的 ~/.config/stampit。
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败 %q：%v", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
