// Package source provides the buffered, random-access byte sources the lazy
// reader and combiner read from: an in-memory byte slice, or a file read
// through a small cache of recently-fetched ranges.
//
// No repo in this module's dependency stack offers a chunked, cache-evicting
// file reader, so fileSource is grounded directly on io.ReaderAt/os.File;
// it reuses the teacher's pool.ByteBuffer for the cached ranges themselves,
// the same buffer type the teacher pools for its own blob I/O.
package source

import "io"

// Source is a random-access byte source: the lazy reader and combiner never
// need more than ReadAt and Close from whatever backs a blob.
type Source interface {
	// ReadAt returns the length bytes starting at offset.
	ReadAt(offset, length int64) ([]byte, error)
	// Close releases any resources (file handles, caches) held by the source.
	Close() error
}

// Sized is implemented by sources that know their total length up front.
type Sized interface {
	Size() int64
}

var _ io.Closer = Source(nil)
