package kernelabi

import (
	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
	"golang.org/x/text/encoding/unicode"
)

// utf16BE decodes the guest's UNICODE_STRING buffers, which are
// big-endian UTF-16 on this big-endian console, the same byte order
// every other guestmem accessor assumes.
var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()

// ReadWideString decodes a NUL-terminated UTF-16BE guest string of at
// most maxChars code units, the shape a LPCWSTR kernel parameter takes.
func ReadWideString(base []byte, addr uint32, maxChars uint32) (string, error) {
	raw := make([]byte, 0, maxChars*2)
	for i := uint32(0); i < maxChars; i++ {
		unit := guestmem.LoadU16(base, addr+i*2)
		if unit == 0 {
			break
		}
		raw = append(raw, byte(unit>>8), byte(unit))
	}
	out, err := utf16BE.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ReadAnsiString decodes a NUL-terminated ANSI (Latin-1-as-ASCII)
// guest string, the shape an LPCSTR kernel parameter takes.
func ReadAnsiString(base []byte, addr uint32, maxChars uint32) string {
	raw := make([]byte, 0, maxChars)
	for i := uint32(0); i < maxChars; i++ {
		b := guestmem.LoadU8(base, addr+i)
		if b == 0 {
			break
		}
		raw = append(raw, b)
	}
	return string(raw)
}
