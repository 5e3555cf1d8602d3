// Package msglc provides a MessagePack-based container format for lazy,
// partial decoding of nested tree-shaped data.
//
// A packed blob is a fixed magic tag, a small fixed-size header, a raw
// MessagePack payload, and a table of contents addressing the byte range of
// every container worth resolving independently. Opening a blob for reading
// parses only the header; the TOC is decoded on first access, and every
// subsequent Get/Read resolves exactly the bytes needed for that one value,
// and nothing else.
//
// # Basic usage
//
// Packing a value:
//
//	root := value.Value{Kind: value.KindMap, Map: value.NewOrderedMap()}
//	root.Map.Set("name", value.String("example"))
//
//	var buf bytes.Buffer
//	_ = msglc.Pack(root, &seekableBuf{&buf})
//
// Reading it back lazily:
//
//	sess, _ := msglc.Open(source.FromBytes(buf.Bytes()))
//	defer sess.Close()
//
//	name, _ := sess.Read("name")
//
// # Package structure
//
// This file provides convenient top-level wrappers around the packer,
// reader, and combine packages, mirroring the teacher's own top-level
// package doc and thin re-export shape. For advanced usage, use those
// packages directly.
package msglc

import (
	"io"

	"github.com/arloliu/msglc/combine"
	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/packer"
	"github.com/arloliu/msglc/reader"
	"github.com/arloliu/msglc/source"
	"github.com/arloliu/msglc/value"
)

// Pack writes root as a complete msglc blob to w (spec §4.4).
func Pack(root value.Value, w io.WriteSeeker, opts ...packer.Option) error {
	return packer.Pack(root, w, opts...)
}

// PackStream writes a single top-level map whose entries are streamed from
// pairs, without materializing them as a value.Map first (spec §4.3
// "Streaming maps").
func PackStream(length int, pairs iterSeq2, w io.WriteSeeker, opts ...packer.Option) error {
	return packer.PackStream(length, pairs, w, opts...)
}

// iterSeq2 aliases packer's streaming-pairs parameter type so callers of
// this package's convenience wrapper don't need to import "iter" themselves
// just to spell the type out.
type iterSeq2 = func(yield func(string, value.Value) bool)

// Open parses src's header and returns a Session ready for Read/Get; the
// TOC is decoded on the first call that needs it (spec §6.2's open_reader).
func Open(src source.Source, opts ...reader.Option) (*reader.Session, error) {
	return reader.Open(src, opts...)
}

// Combine merges refs, in order, into a single msglc blob written to w,
// copying every input's payload bytes verbatim (spec §4.6).
func Combine(w io.WriteSeeker, refs []combine.FileRef, opts ...combine.Option) error {
	return combine.Combine(w, refs, opts...)
}

// Configure applies opts to the process-wide config.Config used by every
// subsequent Pack/Open/Combine call that does not override it explicitly
// (spec §6.2's configure(**options)).
func Configure(opts ...config.Option) error {
	return config.Configure(opts...)
}

// ToPlain fully materializes a cursor returned by a Session's Read/Get into
// an ordinary value.Value tree, with no further lazy resolution (spec
// §4.5.4, §6.2's to_plain).
func ToPlain(v any) (value.Value, error) {
	return reader.ToPlain(v)
}
