package charset

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding represents a text encoding
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1251 Encoding = "windows-1251"
	EncodingKOI8R       Encoding = "koi8-r"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding detects the encoding of a byte buffer.
// Valid UTF-8 (with or without BOM) wins. Otherwise the single-byte Cyrillic
// code page whose decoding yields more lowercase Cyrillic letters is chosen:
// text is mostly lowercase, and the two code pages swap the cases.
func DetectEncoding(data []byte) Encoding {
	if bytes.HasPrefix(data, utf8BOM) || utf8.Valid(data) {
		return EncodingUTF8
	}

	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}

	var cp1251Score, koi8Score int
	for _, b := range sample {
		if b < 0x80 {
			continue
		}
		// windows-1251: 0xE0-0xFF lowercase а-я
		if b >= 0xE0 {
			cp1251Score++
		}
		// koi8-r: 0xC0-0xDF lowercase а-я
		if b >= 0xC0 && b <= 0xDF {
			koi8Score++
		}
	}

	if koi8Score > cp1251Score {
		return EncodingKOI8R
	}
	return EncodingWindows1251
}

// Decode converts a byte buffer from the specified encoding to a UTF-8 string.
// An empty encoding triggers detection.
func Decode(data []byte, enc Encoding) (string, error) {
	if enc == "" {
		enc = DetectEncoding(data)
	}

	if enc == EncodingUTF8 {
		// adapters sometimes claim utf-8 for cp1251 exports
		if utf8.Valid(data) {
			return string(bytes.TrimPrefix(data, utf8BOM)), nil
		}
		enc = DetectEncoding(data)
	}

	var decoder encoding.Encoding
	switch enc {
	case EncodingWindows1251:
		decoder = charmap.Windows1251
	case EncodingKOI8R:
		decoder = charmap.KOI8R
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}

	out, err := decoder.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc, err)
	}
	return string(out), nil
}
