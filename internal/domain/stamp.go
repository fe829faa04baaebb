package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode 决定时间戳从哪里来。
type Mode string

const (
	ModeAuto     Mode = "auto"     // EXIF 优先，失败回退修改时间
	ModeExif     Mode = "exif"     // 仅 EXIF DateTimeOriginal
	ModeModified Mode = "modified" // 仅文件修改时间
)

// ParseMode 校验并解析 mode 字符串（大小写不敏感）。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeExif, ModeModified:
		return m, nil
	case "":
		return "", fmt.Errorf("mode 不能为空")
	default:
		return "", fmt.Errorf("mode 只能是 auto、exif 或 modified，实际是 %q", s)
	}
}

// Source 记录某个时间戳最终来自哪里（写入 report）。
type Source string

const (
	SourceExif     Source = "exif"
	SourceModified Source = "modified"
)

// Stamp 是为某个 Candidate 推断出的时间点。
type Stamp struct {
	Time   time.Time
	Source Source
}

func (s Stamp) IsZero() bool { return s.Time.IsZero() }
