package snapshot

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var (
	utf16Decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// DecodeWideString decodes a UTF-16LE byte slice, stopping at the first NUL
// wide character. Snapshot strings are either NUL terminated or NUL padded
// to a fixed field width.
func DecodeWideString(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", fmt.Errorf("odd byte count %d for UTF-16 data", len(data))
	}

	end := len(data)
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			end = i
			break
		}
	}

	decoded, err := utf16Decoder.NewDecoder().Bytes(data[:end])
	if err != nil {
		return "", fmt.Errorf("UTF-16 decode failed: %w", err)
	}
	return string(decoded), nil
}

// EncodeWideString encodes a string as UTF-16LE with a trailing NUL wide
// character, the snapshot's native string representation.
func EncodeWideString(s string) ([]byte, error) {
	encoded, err := utf16Decoder.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("UTF-16 encode failed: %w", err)
	}
	return append(encoded, 0x00, 0x00), nil
}
