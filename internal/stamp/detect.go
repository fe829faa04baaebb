package stamp

import (
	"io"
	"strings"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"
)

// headerSize 足够 filetype 识别所有已知类型。
const headerSize = 261

// Kind 是内容嗅探的结果。
type Kind struct {
	MIME    string // 例如 "image/jpeg"；未知时为空
	IsImage bool
}

// DetectKind 读取文件头并用 filetype 识别类型（不依赖扩展名）。
func DetectKind(fs afero.Fs, path string) (Kind, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Kind{}, err
	}
	defer f.Close()
	return sniff(f)
}

func sniff(r io.Reader) (Kind, error) {
	head := make([]byte, headerSize)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Kind{}, err
	}
	head = head[:n]

	k, err := filetype.Match(head)
	if err != nil || k == filetype.Unknown {
		return Kind{}, nil
	}
	return Kind{MIME: k.MIME.Value, IsImage: filetype.IsImage(head)}, nil
}

// exifContainer 说明 EXIF 放在哪里、该怎么解。
type exifContainer int

const (
	// exifNone：不尝试（视频、文本等），避免扫完整个文件还可能误命中。
	exifNone exifContainer = iota
	// exifTIFF：JPEG 与基于 TIFF 的格式，goexif 能直接解析。
	exifTIFF
	// exifEmbedded：HEIF/HEIC、AVIF、PNG、WebP，EXIF 是容器里的一个块，需要先定位。
	exifEmbedded
)

func containerOf(k Kind, ext string) exifContainer {
	switch k.MIME {
	case "image/jpeg", "image/tiff", "image/x-canon-cr2":
		return exifTIFF
	case "image/heif", "image/heic", "image/avif", "image/png", "image/webp":
		return exifEmbedded
	case "":
	default:
		return exifNone
	}

	// filetype 不一定能识别 RAW 与部分 HEIF 品牌，按扩展名兜底。
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".tif", ".tiff", ".dng", ".nef", ".arw", ".cr2", ".orf", ".rw2", ".pef", ".srw":
		return exifTIFF
	case ".heic", ".heif", ".avif":
		return exifEmbedded
	}
	return exifNone
}
