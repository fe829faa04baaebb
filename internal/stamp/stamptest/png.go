package stamptest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// PNGWithDate 返回一个 1x1 的 PNG：IHDR + eXIf + IEND，eXIf 中是 TIFFWithDate 的结构。
// 不含 IDAT，但足够让 filetype 识别为 image/png、让 EXIF 定位逻辑找到时间。
func PNGWithDate(dateTime string) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], 1) // width
	binary.BigEndian.PutUint32(ihdr[4:], 1) // height
	ihdr[8] = 8                             // bit depth
	ihdr[9] = 2                             // truecolor
	writeChunk(&b, "IHDR", ihdr)
	writeChunk(&b, "eXIf", TIFFWithDate(dateTime))
	writeChunk(&b, "IEND", nil)
	return b.Bytes()
}

func writeChunk(b *bytes.Buffer, typ string, data []byte) {
	_ = binary.Write(b, binary.BigEndian, uint32(len(data)))
	b.WriteString(typ)
	b.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	_ = binary.Write(b, binary.BigEndian, crc.Sum32())
}
