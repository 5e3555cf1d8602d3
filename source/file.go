package source

import (
	"fmt"
	"os"
	"sync"

	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/internal/options"
	"github.com/arloliu/msglc/internal/pool"
)

// cacheFactor bounds how much cached data a fileSource retains, as a
// multiple of its physical read size: once the sum of cached range lengths
// exceeds readSize*cacheFactor, the oldest ranges are evicted.
const cacheFactor = 4

type fileOptions struct {
	readSize int
}

// Option configures Open.
type Option = options.Option[*fileOptions]

// WithReadSize overrides the physical read size a fileSource uses to
// satisfy a cache miss; it otherwise defaults to config.Current().ReadBuffer.
func WithReadSize(n int) Option {
	return options.NoError(func(o *fileOptions) { o.readSize = n })
}

type cachedRange struct {
	start int64
	buf   *pool.ByteBuffer
}

func (c *cachedRange) end() int64 { return c.start + int64(c.buf.Len()) }

// fileSource is a Source backed by an os.File, caching recently read ranges
// in FIFO order so repeated lazy resolution of nearby values avoids
// re-reading the file.
type fileSource struct {
	f        *os.File
	size     int64
	readSize int
	maxCache int

	mu          sync.Mutex
	ranges      []*cachedRange
	totalCached int
}

// Open opens path for buffered, cached random access.
func Open(path string, opts ...Option) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("source: stat %s: %w", path, err)
	}

	fo := &fileOptions{readSize: config.Current().ReadBuffer}
	if err := options.Apply(fo, opts...); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &fileSource{
		f:        f,
		size:     info.Size(),
		readSize: fo.readSize,
		maxCache: fo.readSize * cacheFactor,
	}, nil
}

func (s *fileSource) Size() int64 { return s.size }

func (s *fileSource) ReadAt(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, fmt.Errorf("source: range [%d,%d) out of bounds (size %d)", offset, offset+length, s.size)
	}
	if length == 0 {
		return nil, nil
	}

	s.mu.Lock()
	for _, r := range s.ranges {
		if r.start <= offset && offset+length <= r.end() {
			start := offset - r.start
			out := make([]byte, length)
			copy(out, r.buf.Bytes()[start:start+length])
			s.mu.Unlock()

			return out, nil
		}
	}
	s.mu.Unlock()

	return s.fetch(offset, length)
}

func (s *fileSource) fetch(offset, length int64) ([]byte, error) {
	readLen := int64(s.readSize)
	if readLen < length {
		readLen = length
	}
	if offset+readLen > s.size {
		readLen = s.size - offset
	}

	bb := pool.GetReadBuffer()
	bb.Grow(int(readLen))
	bb.SetLength(int(readLen))

	if _, err := s.f.ReadAt(bb.Bytes(), offset); err != nil {
		return nil, fmt.Errorf("source: read at %d: %w", offset, err)
	}

	s.mu.Lock()
	s.ranges = append(s.ranges, &cachedRange{start: offset, buf: bb})
	s.totalCached += bb.Len()
	s.evictLocked()
	s.mu.Unlock()

	out := make([]byte, length)
	copy(out, bb.Bytes()[:length])

	return out, nil
}

// evictLocked drops the oldest cached ranges until the total cached size is
// back under maxCache, returning each evicted buffer to the read-cache pool
// for reuse by the next cache-miss fetch. Callers must hold s.mu.
func (s *fileSource) evictLocked() {
	for s.totalCached > s.maxCache && len(s.ranges) > 1 {
		s.totalCached -= s.ranges[0].buf.Len()
		pool.PutReadBuffer(s.ranges[0].buf)
		s.ranges = s.ranges[1:]
	}
}

func (s *fileSource) Close() error {
	s.mu.Lock()
	for _, r := range s.ranges {
		pool.PutReadBuffer(r.buf)
	}
	s.ranges = nil
	s.mu.Unlock()

	return s.f.Close()
}
