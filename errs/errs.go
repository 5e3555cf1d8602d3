// Package errs defines the sentinel error values returned by msglc's public
// operations.
//
// Every exported error is a plain sentinel created with errors.New. Call sites
// wrap it with additional context using fmt.Errorf("...: %w", err) so that
// errors.Is still matches the sentinel through the wrapping, the same pattern
// the rest of the package tree uses throughout.
package errs

import "errors"

var (
	// ErrInvalidMagic is returned when a blob does not start with the msglc magic bytes.
	ErrInvalidMagic = errors.New("msglc: invalid magic bytes")

	// ErrInvalidHeaderSize is returned when a header is not exactly format.HeaderSize bytes.
	ErrInvalidHeaderSize = errors.New("msglc: invalid header size")

	// ErrTruncatedPayload is returned when the payload region is shorter than the TOC claims.
	ErrTruncatedPayload = errors.New("msglc: truncated payload")

	// ErrInvalidTOC is returned when a decoded TOC node violates one of the §3.2 invariants.
	ErrInvalidTOC = errors.New("msglc: invalid table of contents")

	// ErrDecode is returned when the underlying codec fails to decode a MessagePack value.
	ErrDecode = errors.New("msglc: decode failed")

	// ErrEncode is returned when the underlying codec fails to encode a value.
	ErrEncode = errors.New("msglc: encode failed")

	// ErrEncodeCountMismatch is returned when a streaming map yields a different
	// number of pairs than its declared length.
	ErrEncodeCountMismatch = errors.New("msglc: streamed pair count does not match declared length")

	// ErrKeyNotFound is returned when a path segment names a key absent from a map.
	ErrKeyNotFound = errors.New("msglc: key not found")

	// ErrIndexOutOfRange is returned when a path segment indexes past the end of a sequence.
	ErrIndexOutOfRange = errors.New("msglc: index out of range")

	// ErrTypeMismatch is returned when a path descends into a primitive, or addresses
	// a sequence with a non-integer segment.
	ErrTypeMismatch = errors.New("msglc: type mismatch during path resolution")

	// ErrCombineNameMix is returned when some but not all combine inputs carry a name.
	ErrCombineNameMix = errors.New("msglc: combine inputs mix named and unnamed entries")

	// ErrDuplicateName is returned when two combine inputs share the same name.
	ErrDuplicateName = errors.New("msglc: duplicate combine input name")

	// ErrSessionClosed is returned when a cursor is used after its owning session closed.
	ErrSessionClosed = errors.New("msglc: session closed")

	// ErrNotSeekable is returned when Pack or Combine is given a writer that cannot seek
	// back to patch the header.
	ErrNotSeekable = errors.New("msglc: writer does not support seeking")
)
