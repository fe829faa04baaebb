package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/stampit/internal/app/run"
	"github.com/John-Robertt/stampit/internal/app/undo"
	"github.com/John-Robertt/stampit/internal/config"
	"github.com/John-Robertt/stampit/internal/domain"
	"github.com/John-Robertt/stampit/internal/infra/fsx"
	"github.com/John-Robertt/stampit/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 让 RunE 携带退出码；其余 cobra 错误（未知参数、参数个数等）一律按用法错误处理。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

// execute 是可测试的入口：返回进程退出码（0 成功、1 失败、2 用法错误）。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "参数错误：%v\n使用 \"stampit --help\" 查看用法。\n", err)
	return 2
}

type rootOpts struct {
	exif       bool
	modified   bool
	format     string
	write      bool
	verbose    bool
	recursive  bool
	imagesOnly bool
	failFast   bool
	json       bool
	report     string
	configFile string
	logFile    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOpts{}
	cmd := &cobra.Command{
		Use:   "stampit <file_or_directory_path>",
		Short: "按拍摄时间/修改时间重命名照片",
		Long: `把文件重命名为其时间戳（默认 YYYY-MM-DD_HH.MM.SS.<ext>）。
时间戳优先取 EXIF DateTimeOriginal，失败时回退文件修改时间。
默认只预览（dry-run），使用 -w 才真正重命名；隐藏文件永远不会被改动。`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, args[0], opts, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.exif, "exif", "e", false, "只使用 EXIF DateTimeOriginal")
	f.BoolVarP(&opts.modified, "modified", "m", false, "只使用文件修改时间")
	f.StringVarP(&opts.format, "format", "f", config.DefaultFormat, "strftime 格式")
	f.BoolVarP(&opts.write, "write", "w", false, "执行重命名（默认 dry-run）")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "详细输出（debug 日志、逐条结果）")
	f.BoolVarP(&opts.recursive, "recursive", "r", true, "递归处理子目录")
	f.BoolVar(&opts.imagesOnly, "images-only", false, "只重命名内容识别为图片的文件")
	f.BoolVar(&opts.failFast, "fail-fast", false, "遇到第一个失败即停止")
	f.BoolVar(&opts.json, "json", false, "在 stdout 输出 JSON 格式的运行报告")
	f.StringVar(&opts.report, "report", "", "把运行报告写入该文件（仅 -w 时写入）")
	f.StringVar(&opts.configFile, "config", "", "显式指定配置文件")
	f.StringVar(&opts.logFile, "log-file", "", "同时把日志追加到该文件")
	cmd.MarkFlagsMutuallyExclusive("exif", "modified")

	// 目录名可能恰好叫 completion；只保留 undo 这一个子命令。
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddCommand(newUndoCmd(stdout, stderr))
	return cmd
}

func runRoot(cmd *cobra.Command, path string, opts *rootOpts, stdout, stderr io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return &exitError{code: 1}
	}

	changed := cmd.Flags().Changed
	cli := config.CLIArgs{
		Path:          path,
		ConfigFile:    opts.configFile,
		Format:        opts.format,
		FormatSet:     changed("format"),
		Write:         opts.write,
		WriteSet:      changed("write"),
		Recursive:     opts.recursive,
		RecursiveSet:  changed("recursive"),
		ImagesOnly:    opts.imagesOnly,
		ImagesOnlySet: changed("images-only"),
		FailFast:      opts.failFast,
		FailFastSet:   changed("fail-fast"),
		Report:        opts.report,
		ReportSet:     changed("report"),
		LogFile:       opts.logFile,
		LogFileSet:    changed("log-file"),
		Verbose:       opts.verbose,
	}
	switch {
	case opts.exif:
		cli.Mode, cli.ModeSet = domain.ModeExif, true
	case opts.modified:
		cli.Mode, cli.ModeSet = domain.ModeModified, true
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(cwd, path, opts.write, err), opts.json, opts.verbose)
		return &exitError{code: 1}
	}

	if err := logging.Init(eff.LogLevel, stderr, eff.LogFile); err != nil {
		fmt.Fprintf(stderr, "打开日志文件失败：%v\n", err)
		return &exitError{code: 1}
	}
	defer logging.Close()

	verbose := opts.verbose || eff.LogLevel == "debug"
	var obs run.Observer
	if w, ok := progressWriter(stderr); ok {
		obs = newProgressUI(w, verbose)
	}

	rr := run.ExecuteWithObserver(cmd.Context(), eff, afero.NewOsFs(), obs)

	// report 只在真正写入时落盘：dry-run 不改动磁盘上的任何东西。
	if eff.Write && eff.Report != "" {
		if err := writeReportFile(eff.Report, rr); err != nil {
			fmt.Fprintf(stderr, "写入 report 失败：%v\n", err)
			emitReport(stdout, stderr, rr, opts.json, verbose)
			return &exitError{code: 1}
		}
		logging.Get().Info().Str("report", eff.Report).Msg("已写入运行报告")
	}

	emitReport(stdout, stderr, rr, opts.json, verbose)
	if rr.Summary.Failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

type undoOpts struct {
	write bool
	json  bool
}

func newUndoCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &undoOpts{}
	cmd := &cobra.Command{
		Use:   "undo <report.json>",
		Short: "按运行报告把文件改回原名",
		Long: `读取一次 -w 运行写出的报告，按倒序把 renamed 的文件改回原名。
默认只预览，使用 -w 才真正执行；永不覆盖已存在的文件。`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUndo(cmd, args[0], opts, stdout, stderr)
		},
	}
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "执行撤销（默认 dry-run）")
	cmd.Flags().BoolVar(&opts.json, "json", false, "在 stdout 输出 JSON 格式的撤销报告")
	return cmd
}

func runUndo(cmd *cobra.Command, path string, opts *undoOpts, stdout, stderr io.Writer) error {
	if err := logging.Init(config.DefaultLogLevel, stderr, ""); err != nil {
		return &exitError{code: 1}
	}
	defer logging.Close()

	fs := afero.NewOsFs()
	src, err := undo.ReadReport(fs, path)
	if err != nil {
		fmt.Fprintf(stderr, "读取 report 失败：%v\n", err)
		return &exitError{code: 1}
	}

	rr := undo.Execute(cmd.Context(), fs, src, opts.write)
	emitReport(stdout, stderr, rr, opts.json, true)
	if rr.Summary.Failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// emitReport：--json 时 stdout 只输出一个 RunReport JSON（摘要走 stderr）；
// 否则 stdout 输出人类可读的结果，失败条目写 stderr。
func emitReport(stdout, stderr io.Writer, rr domain.RunReport, asJSON, verbose bool) {
	st := newStyles(stdout)

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rr)
	} else {
		for _, it := range rr.Items {
			switch it.Status {
			case domain.FileStatusPlanned, domain.FileStatusRenamed:
				fmt.Fprintf(stdout, "%s -> %s\n", displayPath(rr.Path, it.Src), st.dst.Render(filepath.Base(it.Dst)))
			case domain.FileStatusSkipped, domain.FileStatusUnchanged:
				if verbose {
					note := it.Status
					if it.ErrorCode != "" {
						note += " " + it.ErrorCode
					}
					fmt.Fprintf(stdout, "%s %s\n", displayPath(rr.Path, it.Src), st.faint.Render("("+note+")"))
				}
			}
		}
	}

	for _, it := range rr.Items {
		if it.Status != domain.FileStatusFailed {
			continue
		}
		key := displayPath(rr.Path, it.Src)
		if it.Src == "" {
			key = rr.Path
		}
		fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
	}

	s := rr.Summary
	mode := "write"
	if rr.DryRun {
		mode = "dry-run"
	}
	var summary io.Writer = stdout
	if asJSON {
		summary = stderr
	}
	fmt.Fprintf(summary, "%s（%s）：planned=%d renamed=%d unchanged=%d skipped=%d failed=%d\n",
		st.title.Render("完成"), mode, s.Planned, s.Renamed, s.Unchanged, s.Skipped, s.Failed,
	)
	if rr.DryRun && s.Planned > 0 && !asJSON {
		fmt.Fprintln(stdout, st.faint.Render("未改动任何文件；使用 -w 执行重命名。"))
	}
}

// displayPath 尽量显示相对目标目录的路径；单文件目标或无法相对化时显示文件名。
func displayPath(root, p string) string {
	if p == "" {
		return "<unknown>"
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Base(p)
	}
	return rel
}

func reportForConfigError(cwd, path string, write bool, err error) domain.RunReport {
	now := time.Now().UTC()
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Path:       filepath.Clean(p),
		DryRun:     !write,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.FileResult{{
			Status:    domain.FileStatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// progressWriter：进度输出只在交互终端启用，且只写 stderr（不污染 stdout）。
func progressWriter(stderr io.Writer) (io.Writer, bool) {
	f, ok := stderr.(*os.File)
	if !ok || !isTTY(f) {
		return nil, false
	}
	return f, true
}
