package stamp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	exifblock "github.com/dsoprea/go-exif/v3"
	"github.com/rwcarlsen/goexif/exif"
)

// exifLayout 是 EXIF DateTimeOriginal 的固定格式。
const exifLayout = "2006:01:02 15:04:05"

// ErrNoExifDate 表示文件没有可用的 DateTimeOriginal。
var ErrNoExifDate = errors.New("没有 EXIF DateTimeOriginal")

// ReadExifTime 从 r 中解析 EXIF DateTimeOriginal。
// EXIF 时间不带时区，按 loc（通常是 time.Local）解释。
func ReadExifTime(r io.Reader, loc *time.Location) (time.Time, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析 EXIF 失败：%w", err)
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, ErrNoExifDate
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, ErrNoExifDate
	}

	// 部分相机会写入尾随空格或 NUL。
	s = strings.TrimRight(strings.TrimSpace(s), "\x00")
	t, err := time.ParseInLocation(exifLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("EXIF 时间格式无效 %q：%w", s, err)
	}
	return t, nil
}

// ReadEmbeddedExifTime 用于 HEIF/HEIC、AVIF、PNG、WebP：先在容器中定位 EXIF 块
// （从 TIFF 头开始），再交给 ReadExifTime 解析。
func ReadEmbeddedExifTime(r io.Reader, loc *time.Location) (time.Time, error) {
	raw, err := exifblock.SearchAndExtractExifWithReader(r)
	if err != nil {
		if errors.Is(err, exifblock.ErrNoExif) {
			return time.Time{}, ErrNoExifDate
		}
		return time.Time{}, fmt.Errorf("定位 EXIF 失败：%w", err)
	}
	return ReadExifTime(bytes.NewReader(raw), loc)
}
