package googleplayreport

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

// Encoding identifies the character encoding of a bucket report file.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding sniffs a report's encoding from its BOM, falling back to
// null-byte density: UTF-16 text encodes ASCII with a zero byte in every
// pair, so more than 30% nulls in the first 200 bytes means UTF-16.
func DetectEncoding(raw []byte) Encoding {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return EncodingUTF8
	case bytes.HasPrefix(raw, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(raw, bomUTF16BE):
		return EncodingUTF16BE
	}

	window := raw
	if len(window) > 200 {
		window = window[:200]
	}
	if len(window) == 0 {
		return EncodingUTF8
	}

	var nulls, evenNulls int
	for i, b := range window {
		if b == 0 {
			nulls++
			if i%2 == 0 {
				evenNulls++
			}
		}
	}
	if nulls*10 > len(window)*3 {
		// Big-endian UTF-16 puts the zero byte first for ASCII.
		if evenNulls*2 > nulls {
			return EncodingUTF16BE
		}
		return EncodingUTF16LE
	}
	return EncodingUTF8
}

// Decode returns the report as UTF-8 text with any BOM stripped.
func Decode(raw []byte) ([]byte, error) {
	switch DetectEncoding(raw) {
	case EncodingUTF16LE:
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		return decoder.Bytes(bytes.TrimPrefix(raw, bomUTF16LE))
	case EncodingUTF16BE:
		decoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		return decoder.Bytes(bytes.TrimPrefix(raw, bomUTF16BE))
	default:
		return bytes.TrimPrefix(raw, bomUTF8), nil
	}
}
