package source

import (
	"fmt"
	"io"
)

// memSource serves reads directly out of an in-memory byte slice; there is
// no cache or eviction path since the whole blob is already resident.
type memSource struct {
	data []byte
}

// FromBytes wraps data as a Source. Close is a no-op.
func FromBytes(data []byte) Source {
	return &memSource{data: data}
}

func (s *memSource) ReadAt(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(s.data)) {
		return nil, fmt.Errorf("%w: range [%d,%d) out of bounds (len %d)", io.ErrUnexpectedEOF, offset, offset+length, len(s.data))
	}

	return s.data[offset : offset+length], nil
}

func (s *memSource) Size() int64 { return int64(len(s.data)) }

func (s *memSource) Close() error { return nil }
