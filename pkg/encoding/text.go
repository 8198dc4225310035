// Package encoding normalises the text encodings of tabular input files.
// Spreadsheet exports arrive as UTF-8 with or without a BOM, as UTF-16
// ("Unicode text") or in a Windows code page.
package encoding

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
)

// HasBOM reports whether data starts with a UTF-8 or UTF-16 byte order mark.
func HasBOM(data []byte) bool {
	return bytes.HasPrefix(data, bomUTF8) ||
		bytes.HasPrefix(data, bomUTF16LE) ||
		bytes.HasPrefix(data, bomUTF16BE)
}

// ToUTF8 returns data as UTF-8 without a byte order mark. Input with a BOM
// is decoded accordingly; valid UTF-8 is returned as is; anything else is
// read as Windows-1252.
func ToUTF8(data []byte) ([]byte, error) {
	if HasBOM(data) {
		decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		result, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	if utf8.Valid(data) {
		return data, nil
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TrimNullBytes removes trailing null bytes, as left by some exporters
// that pad files to a block size.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}
