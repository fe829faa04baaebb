package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/viper"

	"github.com/John-Robertt/stampit/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// ConfigName 是自动发现的配置文件名（不含扩展名）：stampit.json / stampit.yaml / stampit.toml。
	ConfigName = "stampit"
	// DefaultFormat 对应 YYYY-MM-DD_HH.MM.SS。
	DefaultFormat = "%Y-%m-%d_%H.%M.%S"
	// DefaultConcurrency 是时间戳解析阶段并发的内置默认值。
	DefaultConcurrency = 4
	// DefaultLogLevel 是日志级别默认值；--verbose 会提升为 debug。
	DefaultLogLevel = "info"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --write=false 必须能覆盖 config.write=true。
type CLIArgs struct {
	Path       string
	ConfigFile string

	Mode    domain.Mode
	ModeSet bool

	Format    string
	FormatSet bool

	Write    bool
	WriteSet bool

	Recursive    bool
	RecursiveSet bool

	ImagesOnly    bool
	ImagesOnlySet bool

	FailFast    bool
	FailFastSet bool

	Report    string
	ReportSet bool

	LogFile    string
	LogFileSet bool

	Verbose bool
}

// FileConfig 对应 stampit.{json,yaml,toml} 的解析结构（viper + mapstructure）。
type FileConfig struct {
	Format         string   `mapstructure:"format"`
	Mode           string   `mapstructure:"mode"`
	Write          bool     `mapstructure:"write"`
	Recursive      bool     `mapstructure:"recursive"`
	ImagesOnly     bool     `mapstructure:"images_only"`
	KeepExtCase    bool     `mapstructure:"keep_ext_case"`
	SkipDuplicates bool     `mapstructure:"skip_duplicates"`
	FailFast       bool     `mapstructure:"fail_fast"`
	Concurrency    int      `mapstructure:"concurrency"`
	ExcludeDirs    []string `mapstructure:"exclude_dirs"`
	Report         string   `mapstructure:"report"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFile        string   `mapstructure:"log_file"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path       string
	ConfigFile string // 实际使用的配置文件；未使用时为空

	Mode   domain.Mode
	Format string
	Layout *strftime.Strftime

	Write          bool
	Recursive      bool
	ImagesOnly     bool
	KeepExtCase    bool
	SkipDuplicates bool
	FailFast       bool

	Concurrency int
	ExcludeDirs []string
	Report      string // 绝对路径；为空表示不写 report

	LogLevel string
	LogFile  string // 绝对路径；为空表示只输出到控制台
}

// ExcludeFiles 返回扫描阶段必须排除的文件：配置文件、report 与日志文件本身不能被重命名。
func (e EffectiveConfig) ExcludeFiles() []string {
	out := make([]string, 0, 3)
	if e.ConfigFile != "" {
		out = append(out, e.ConfigFile)
	}
	if e.Report != "" {
		out = append(out, e.Report)
	}
	if e.LogFile != "" {
		out = append(out, e.LogFile)
	}
	return out
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil && e.Path != "" {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) --config 显式指定：必须存在
// 2) 否则依次查找 <目标目录>/stampit.*、$HOME/.config/stampit/stampit.*（均可选）
//    目标是文件时，“目标目录”指其所在目录
//
// 覆盖优先级（固定）：CLI（显式指定）> 配置文件 > 内置默认
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	if strings.TrimSpace(cli.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: errors.New("必须提供文件或目录路径")}
	}
	absPath := absCleanFrom(cwdAbs, cli.Path)

	v := newViper()
	cfgPath := ""
	if strings.TrimSpace(cli.ConfigFile) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		if _, err := os.Stat(cfgPath); err != nil {
			if os.IsNotExist(err) {
				return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
			}
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(configSearchDir(absPath))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "stampit"))
		}
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: v.ConfigFileUsed(), Err: err}
			}
		} else {
			cfgPath = v.ConfigFileUsed()
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	return merge(absPath, cwdAbs, cli, fc, cfgPath)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("mode", string(domain.ModeAuto))
	v.SetDefault("write", false)
	v.SetDefault("recursive", true)
	v.SetDefault("images_only", false)
	v.SetDefault("keep_ext_case", false)
	v.SetDefault("skip_duplicates", false)
	v.SetDefault("fail_fast", false)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("exclude_dirs", []string{})
	v.SetDefault("report", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	return v
}

// configSearchDir：目标是目录则在目录内查找；否则（文件/不存在）在其父目录查找。
func configSearchDir(absPath string) string {
	if fi, err := os.Stat(absPath); err == nil && fi.IsDir() {
		return absPath
	}
	return filepath.Dir(absPath)
}

func merge(absPath, cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) error { return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err} }

	// mode：CLI > config > 默认 auto
	mode, err := domain.ParseMode(fc.Mode)
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	if cli.ModeSet {
		mode = cli.Mode
	}

	format := fc.Format
	if cli.FormatSet {
		format = cli.Format
	}
	layout, err := compileFormat(format)
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}

	write := fc.Write
	if cli.WriteSet {
		write = cli.Write
	}
	recursive := fc.Recursive
	if cli.RecursiveSet {
		recursive = cli.Recursive
	}
	imagesOnly := fc.ImagesOnly
	if cli.ImagesOnlySet {
		imagesOnly = cli.ImagesOnly
	}
	failFast := fc.FailFast
	if cli.FailFastSet {
		failFast = cli.FailFast
	}

	// 范围 [1, 32]；超出截断。
	concurrency := fc.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	// report：CLI 路径相对 cwd；配置文件中的路径相对配置文件所在目录。
	cfgDir := cwdAbs
	if cfgPath != "" {
		cfgDir = filepath.Dir(cfgPath)
	}
	report := ""
	if cli.ReportSet && strings.TrimSpace(cli.Report) != "" {
		report = absCleanFrom(cwdAbs, cli.Report)
	} else if !cli.ReportSet && strings.TrimSpace(fc.Report) != "" {
		report = absCleanFrom(cfgDir, fc.Report)
	}

	logLevel := strings.ToLower(strings.TrimSpace(fc.LogLevel))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, invalid(fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", fc.LogLevel))
	}
	if cli.Verbose {
		logLevel = "debug"
	}

	// log_file 与 report 同规则；日志在扫描前就已打开，必须是绝对路径才能被扫描排除。
	logFile := ""
	if cli.LogFileSet && strings.TrimSpace(cli.LogFile) != "" {
		logFile = absCleanFrom(cwdAbs, cli.LogFile)
	} else if !cli.LogFileSet && strings.TrimSpace(fc.LogFile) != "" {
		logFile = absCleanFrom(cfgDir, fc.LogFile)
	}

	excludes := make([]string, 0, len(fc.ExcludeDirs))
	for _, x := range fc.ExcludeDirs {
		if x = strings.TrimSpace(x); x != "" {
			excludes = append(excludes, x)
		}
	}

	return EffectiveConfig{
		Path:           absPath,
		ConfigFile:     cfgPath,
		Mode:           mode,
		Format:         format,
		Layout:         layout,
		Write:          write,
		Recursive:      recursive,
		ImagesOnly:     imagesOnly,
		KeepExtCase:    fc.KeepExtCase,
		SkipDuplicates: fc.SkipDuplicates,
		FailFast:       failFast,
		Concurrency:    concurrency,
		ExcludeDirs:    excludes,
		Report:         report,
		LogLevel:       logLevel,
		LogFile:        logFile,
	}, nil
}

// compileFormat 校验 strftime 格式：必须可解析，且产出的文件名非空、不含路径分隔符。
func compileFormat(format string) (*strftime.Strftime, error) {
	if strings.TrimSpace(format) == "" {
		return nil, errors.New("format 不能为空")
	}
	layout, err := strftime.New(format)
	if err != nil {
		return nil, fmt.Errorf("format 无效：%w", err)
	}
	probe := layout.FormatString(time.Date(2023, 12, 31, 17, 32, 54, 0, time.Local))
	if strings.TrimSpace(probe) == "" || probe == "." || probe == ".." {
		return nil, fmt.Errorf("format %q 生成的文件名为空", format)
	}
	if strings.ContainsAny(probe, `/\`) || strings.ContainsRune(probe, filepath.Separator) {
		return nil, fmt.Errorf("format %q 生成的文件名包含路径分隔符：%q", format, probe)
	}
	if domain.IsHidden(probe) {
		return nil, fmt.Errorf("format %q 生成的文件名以 '.' 开头，会变成隐藏文件：%q", format, probe)
	}
	return layout, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
