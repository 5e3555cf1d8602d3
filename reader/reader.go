// Package reader implements msglc's lazy reader: opening a blob parses only
// its header, the table of contents is decoded on first access, and every
// subsequent Get/At resolves exactly the bytes needed for that one value
// (spec §4.5).
package reader

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/msglc/codec"
	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/format"
	"github.com/arloliu/msglc/internal/options"
	"github.com/arloliu/msglc/source"
	"github.com/arloliu/msglc/toc"
)

type sessionOptions struct {
	cfg   *config.Config
	codec codec.Codec
	cache bool
}

// Option configures Open.
type Option = options.Option[*sessionOptions]

// WithConfig overrides the config.Config this session uses.
func WithConfig(cfg *config.Config) Option {
	return options.NoError(func(o *sessionOptions) { o.cfg = cfg })
}

// WithCodec overrides the codec.Codec backend this session uses.
func WithCodec(c codec.Codec) Option {
	return options.NoError(func(o *sessionOptions) { o.codec = c })
}

// WithCache toggles the per-cursor value cache. It is enabled by default
// (spec §4.5.2's cached=true default).
func WithCache(enabled bool) Option {
	return options.NoError(func(o *sessionOptions) { o.cache = enabled })
}

// Session is an open msglc blob: its header has been parsed; the TOC trailer
// is decoded lazily on first access (spec §8 scenario 5 — a blob with a
// valid header but a corrupt or truncated TOC opens fine, and only fails once
// something actually tries to resolve a value out of it).
type Session struct {
	src   source.Source
	cfg   *config.Config
	codec codec.Codec
	cache bool
	hdr   format.Header

	tocOnce sync.Once
	root    *toc.Node
	tocErr  error

	rootCur any // root cursor reused across Root/Read calls when caching is on

	closed atomic.Bool
}

// readHeader validates the magic bytes and parses the fixed 20-byte header of
// a source positioned at the start of a msglc blob. It never touches the
// payload or TOC regions.
func readHeader(src source.Source) (format.Header, error) {
	magic, err := src.ReadAt(0, int64(len(format.Magic)))
	if err != nil {
		return format.Header{}, fmt.Errorf("reader: read magic: %w", err)
	}
	if !format.CheckMagic(magic) {
		return format.Header{}, errs.ErrInvalidMagic
	}

	hdrBytes, err := src.ReadAt(int64(len(format.Magic)), int64(format.HeaderSize))
	if err != nil {
		return format.Header{}, fmt.Errorf("reader: read header: %w", err)
	}

	var hdr format.Header
	if err := hdr.Parse(hdrBytes); err != nil {
		return format.Header{}, err
	}

	return hdr, nil
}

// decodeTOC fetches and decodes the TOC trailer described by hdr.
// hdr.TOCStart is absolute to the start of the file (spec §3.3, §6.1).
func decodeTOC(src source.Source, hdr format.Header, c codec.Codec) (*toc.Node, error) {
	tocBytes, err := src.ReadAt(int64(hdr.TOCStart), int64(hdr.TOCLength))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTruncatedPayload, err)
	}

	root, err := toc.DecodeFromBytes(tocBytes, c)
	if err != nil {
		return nil, err
	}

	return root, nil
}

// ReadHeaderAndTOC reads and validates the magic bytes and header, then
// eagerly decodes the TOC trailer, of a source positioned at the start of a
// msglc blob. combine.Combine reuses this exact parsing, since it always
// needs every input's full root TOC immediately to rebase and graft it; a
// lazy Open, in contrast, defers the TOC decode (see decodeTOC/Session.loadTOC).
func ReadHeaderAndTOC(src source.Source, c codec.Codec) (format.Header, *toc.Node, error) {
	hdr, err := readHeader(src)
	if err != nil {
		return format.Header{}, nil, err
	}

	root, err := decodeTOC(src, hdr, c)
	if err != nil {
		return format.Header{}, nil, err
	}

	return hdr, root, nil
}

// Open validates src's magic and header and returns a Session ready for
// Read/Get. The TOC trailer itself is not fetched or decoded until the first
// call that needs it.
func Open(src source.Source, opts ...Option) (*Session, error) {
	so := &sessionOptions{cfg: config.Current(), codec: codec.Default(), cache: true}
	if err := options.Apply(so, opts...); err != nil {
		return nil, err
	}

	hdr, err := readHeader(src)
	if err != nil {
		return nil, err
	}

	return &Session{
		src:   src,
		cfg:   so.cfg,
		codec: so.codec,
		cache: so.cache,
		hdr:   hdr,
	}, nil
}

// loadTOC decodes the TOC trailer on first call and caches the result (or
// error) for every subsequent call.
func (s *Session) loadTOC() (*toc.Node, error) {
	s.tocOnce.Do(func() {
		s.root, s.tocErr = decodeTOC(s.src, s.hdr, s.codec)
	})

	return s.root, s.tocErr
}

func (s *Session) checkOpen() error {
	if s.closed.Load() {
		return errs.ErrSessionClosed
	}

	return nil
}

// Close closes the underlying source and invalidates every cursor this
// session produced.
func (s *Session) Close() error {
	s.closed.Store(true)

	return s.src.Close()
}

// fetch reads the payload bytes in [start,end), which are relative to the
// start of the payload region (spec §3.3).
func (s *Session) fetch(start, end uint64) ([]byte, error) {
	return s.src.ReadAt(format.PayloadStart+int64(start), int64(end-start))
}

// Root returns the root value of the blob, as a *LazyMap, *LazySeq, or a
// decoded scalar, depending on its shape.
func (s *Session) Root() (any, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	root, err := s.loadTOC()
	if err != nil {
		return nil, err
	}

	if s.rootCur != nil {
		return s.rootCur, nil
	}

	cur, err := s.wrapNode(root)
	if err != nil {
		return nil, err
	}
	if s.cache {
		s.rootCur = cur
	}

	return cur, nil
}

// Get resolves a single path segment from the root (spec §6.3).
func (s *Session) Get(key any) (any, error) {
	return s.Read(key)
}

// Read resolves path from the root, descending one segment at a time. A
// single "/"-separated string is accepted as shorthand for multiple
// segments (spec §6.3).
func (s *Session) Read(path ...any) (any, error) {
	cur, err := s.Root()
	if err != nil {
		return nil, err
	}

	for _, seg := range expandPath(path) {
		cur, err = descend(cur, seg)
		if err != nil {
			return nil, err
		}
	}

	return cur, nil
}
