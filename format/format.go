// Package format defines the fixed on-disk layout msglc wraps around every
// packed blob: a magic tag, a fixed-size header naming where the table of
// contents lives, a payload region of raw MessagePack, and the encoded TOC
// itself (spec §3.3, §6.1).
//
// The header is parsed directly off a byte slice with encoding/binary,
// the same field-by-field approach the teacher uses for its own fixed
// binary header (section.NumericHeader.Parse/Bytes), rather than going
// through the general value codec for something this small and fixed-shape.
package format

import (
	"encoding/binary"

	"github.com/arloliu/msglc/errs"
)

// Magic is the 4-byte tag every packed blob starts with.
var Magic = [4]byte{'M', 'L', 'C', '1'}

// HeaderSize is the fixed size, in bytes, of the header that follows Magic.
const HeaderSize = 20

// Header is the fixed-size record immediately following Magic, giving the
// byte offset and length of the encoded TOC trailer (spec §3.3).
type Header struct {
	// TOCStart is the byte offset, from the start of the blob, where the
	// encoded TOC trailer begins.
	TOCStart uint64 // byte offset 0-7
	// TOCLength is the length in bytes of the encoded TOC trailer.
	TOCLength uint64 // byte offset 8-15
	// bytes 16-19 are reserved and always written as zero.
}

// Parse decodes a Header from data, which must be exactly HeaderSize bytes.
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	h.TOCStart = binary.LittleEndian.Uint64(data[0:8])
	h.TOCLength = binary.LittleEndian.Uint64(data[8:16])

	return nil
}

// Bytes serializes h into a HeaderSize-byte slice.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	binary.LittleEndian.PutUint64(b[0:8], h.TOCStart)
	binary.LittleEndian.PutUint64(b[8:16], h.TOCLength)
	// b[16:20] left zero, reserved.

	return b
}

// PayloadStart is the byte offset at which the MessagePack payload begins:
// immediately after Magic and the fixed header.
const PayloadStart = int64(len(Magic)) + int64(HeaderSize)

// CheckMagic reports whether data begins with Magic.
func CheckMagic(data []byte) bool {
	if len(data) < len(Magic) {
		return false
	}

	return data[0] == Magic[0] && data[1] == Magic[1] && data[2] == Magic[2] && data[3] == Magic[3]
}
