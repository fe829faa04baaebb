package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu       sync.Mutex
	logger   *zerolog.Logger
	logFile  *os.File
	console  io.Writer
	minLevel zerolog.Level
)

// Init 初始化全局 zerolog 日志。
// level: 日志级别（"debug"、"info"、"warn"、"error"），未知值按 info 处理
// out:   控制台输出（通常是 stderr，避免污染 stdout 的 JSON 报告）
// file:  日志文件路径，为空时仅输出到控制台；文件中写结构化 JSON 行
func Init(level string, out io.Writer, file string) error {
	mu.Lock()
	defer mu.Unlock()

	closeFileLocked()

	console = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	minLevel = parseLevel(level)
	w := console
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = f
		w = zerolog.MultiLevelWriter(w, f)
	}

	setLocked(w)
	return nil
}

func setLocked(w io.Writer) {
	l := zerolog.New(w).Level(minLevel).With().Timestamp().Logger()
	logger = &l
}

// Close 关闭日志文件（若有），之后的日志只写控制台。重复调用安全。
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
}

func closeFileLocked() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
		setLocked(console)
	}
}

// Get 返回全局 logger 实例。
// 如果 logger 未初始化，返回一个丢弃所有输出的 logger（测试中无需初始化）。
func Get() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
