// Package config holds the tunable thresholds and buffer sizes shared by
// packer, reader, and combine (spec §4.1): the small-object threshold below
// which a container is stored opaquely, the trivial-size threshold used for
// grouped TOC blocks, I/O buffer sizes, and the fast-load policy.
//
// A process-wide Config is held in an atomic.Pointer and changed via
// Configure; any session can instead override it for its own lifetime with
// WithConfig. Both are built from the same functional-options idiom the
// teacher uses for its encoder/decoder configs (see blob.WithLittleEndian,
// blob.WithTimestampEncoding).
package config

import (
	"sync/atomic"

	"github.com/arloliu/msglc/internal/options"
)

// Config holds every tunable of the msglc stack (spec §4.1).
type Config struct {
	// SmallObjThreshold is the byte size below which a container (seq or
	// map) is stored opaquely, with no TOC expansion into children.
	SmallObjThreshold int
	// TrivialSize is the byte size below which a sequence element is
	// eligible for grouped-TOC blocks rather than an individual entry.
	TrivialSize int
	// WriteBuffer is the size, in bytes, of the packer's staging buffer.
	WriteBuffer int
	// ReadBuffer is the size, in bytes, of a single physical read the
	// source package performs to satisfy a cache miss.
	ReadBuffer int
	// FastLoad enables ToPlain's threshold-driven choice between one big
	// read-and-decode and child-by-child resolution (spec §4.5.4).
	FastLoad bool
	// FastLoadThreshold is the fraction of a cursor's children already
	// resolved through its value cache at or above which ToPlain walks child
	// by child instead of reading and decoding the whole range at once.
	FastLoadThreshold float64
	// CopyChunk is the chunk size, in bytes, combine uses when streaming
	// payload bytes from one source to another.
	CopyChunk int
}

// Defaults returns the built-in default Config (spec §4.1).
func Defaults() *Config {
	return &Config{
		SmallObjThreshold: 8 * 1024,
		TrivialSize:       20,
		WriteBuffer:       8 << 20,
		ReadBuffer:        64 << 10,
		FastLoad:          true,
		FastLoadThreshold: 0.3,
		CopyChunk:         16 << 20,
	}
}

// Clone returns a shallow copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Option configures a Config.
type Option = options.Option[*Config]

var current atomic.Pointer[Config]

func init() {
	current.Store(Defaults())
}

// Configure applies opts to the process-wide Config. It is not safe to call
// concurrently with itself, but Current is always safe to call from any
// goroutine.
func Configure(opts ...Option) error {
	cfg := current.Load().Clone()
	if err := options.Apply(cfg, opts...); err != nil {
		return err
	}

	current.Store(cfg)

	return nil
}

// Current returns the process-wide Config in effect. The returned value must
// not be mutated; callers that need an override should build one with
// Resolve instead.
func Current() *Config {
	return current.Load()
}

// Resolve returns a Config starting from the process-wide default and
// overridden by opts, without touching the process-wide value. The result
// can be handed to packer.WithConfig or reader.WithConfig as a per-session
// override.
func Resolve(opts ...Option) (*Config, error) {
	cfg := current.Load().Clone()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WithSmallObjThreshold sets SmallObjThreshold.
func WithSmallObjThreshold(n int) Option {
	return options.NoError(func(c *Config) { c.SmallObjThreshold = n })
}

// WithTrivialSize sets TrivialSize.
func WithTrivialSize(n int) Option {
	return options.NoError(func(c *Config) { c.TrivialSize = n })
}

// WithWriteBuffer sets WriteBuffer.
func WithWriteBuffer(n int) Option {
	return options.NoError(func(c *Config) { c.WriteBuffer = n })
}

// WithReadBuffer sets ReadBuffer.
func WithReadBuffer(n int) Option {
	return options.NoError(func(c *Config) { c.ReadBuffer = n })
}

// WithFastLoad enables or disables the fast-load policy.
func WithFastLoad(enabled bool) Option {
	return options.NoError(func(c *Config) { c.FastLoad = enabled })
}

// WithFastLoadThreshold sets FastLoadThreshold.
func WithFastLoadThreshold(f float64) Option {
	return options.NoError(func(c *Config) { c.FastLoadThreshold = f })
}

// WithCopyChunk sets CopyChunk.
func WithCopyChunk(n int) Option {
	return options.NoError(func(c *Config) { c.CopyChunk = n })
}
