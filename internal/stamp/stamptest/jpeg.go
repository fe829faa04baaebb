// Package stamptest 为测试构造带 EXIF 的最小图片。
package stamptest

import (
	"bytes"
	"encoding/binary"
)

// JPEGWithDate 返回一个最小 JPEG：SOI + APP1(Exif) + EOI，
// 其中 ExifIFD 只有一个 DateTimeOriginal（格式 "YYYY:MM:DD HH:MM:SS"）。
// 不含图像数据，但足够让 filetype 识别为 image/jpeg、让 goexif 解出时间。
func JPEGWithDate(dateTime string) []byte {
	tiff := TIFFWithDate(dateTime)

	payload := append([]byte("Exif\x00\x00"), tiff...)

	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&b, binary.BigEndian, uint16(len(payload)+2))
	b.Write(payload)
	b.Write([]byte{0xFF, 0xD9})
	return b.Bytes()
}

// JPEGWithoutExif 返回一个不带 APP1 的最小 JPEG 头。
func JPEGWithoutExif() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xD9}
}

// TIFFWithDate 返回小端 TIFF 结构：IFD0 只有 ExifIFDPointer，ExifIFD 只有 DateTimeOriginal。
func TIFFWithDate(dateTime string) []byte {
	le := binary.LittleEndian
	var b bytes.Buffer

	// header（0..7）
	b.WriteString("II")
	_ = binary.Write(&b, le, uint16(42))
	_ = binary.Write(&b, le, uint32(8))

	// IFD0（8..25）：1 个条目 + next=0
	_ = binary.Write(&b, le, uint16(1))
	_ = binary.Write(&b, le, uint16(0x8769)) // ExifIFDPointer
	_ = binary.Write(&b, le, uint16(4))      // LONG
	_ = binary.Write(&b, le, uint32(1))
	_ = binary.Write(&b, le, uint32(26))
	_ = binary.Write(&b, le, uint32(0))

	// ExifIFD（26..43）
	_ = binary.Write(&b, le, uint16(1))
	_ = binary.Write(&b, le, uint16(0x9003)) // DateTimeOriginal
	_ = binary.Write(&b, le, uint16(2))      // ASCII
	_ = binary.Write(&b, le, uint32(20))
	_ = binary.Write(&b, le, uint32(44))
	_ = binary.Write(&b, le, uint32(0))

	// 值（44..63）：19 字节 + NUL
	v := make([]byte, 20)
	copy(v, dateTime)
	b.Write(v)
	return b.Bytes()
}
