package hashx

import (
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// Sum64 计算文件内容的 xxhash64。
func Sum64(fs afero.Fs, path string) (uint64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// SameContent 判断两个文件内容是否相同：大小不同直接返回 false，否则比较 xxhash64。
func SameContent(fs afero.Fs, a, b string) (bool, error) {
	fa, err := fs.Stat(a)
	if err != nil {
		return false, err
	}
	fb, err := fs.Stat(b)
	if err != nil {
		return false, err
	}
	if fa.IsDir() || fb.IsDir() || fa.Size() != fb.Size() {
		return false, nil
	}

	ha, err := Sum64(fs, a)
	if err != nil {
		return false, err
	}
	hb, err := Sum64(fs, b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
