package combine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/format"
	"github.com/arloliu/msglc/packer"
	"github.com/arloliu/msglc/reader"
	"github.com/arloliu/msglc/source"
	"github.com/arloliu/msglc/value"
)

// seekBuffer adapts a []byte into an io.WriteSeeker for tests.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:end], p)
	s.pos = end

	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		s.pos = int(offset)
	case 1:
		s.pos += int(offset)
	case 2:
		s.pos = len(s.buf) + int(offset)
	}

	return int64(s.pos), nil
}

func packSample(t *testing.T, v value.Value) []byte {
	t.Helper()

	var w seekBuffer
	require.NoError(t, packer.Pack(v, &w, packer.WithConfig(&config.Config{
		SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096,
	})))

	return w.buf
}

func TestCombine_Keyed_RoundTrip(t *testing.T) {
	a := value.Value{Kind: value.KindMap, Map: value.NewOrderedMap()}
	a.Map.Set("x", value.Int(1))

	b := value.Value{Kind: value.KindMap, Map: value.NewOrderedMap()}
	b.Map.Set("y", value.Int(2))

	refs := []FileRef{
		{Source: source.FromBytes(packSample(t, a)), Name: "alpha"},
		{Source: source.FromBytes(packSample(t, b)), Name: "beta"},
	}

	var out seekBuffer
	require.NoError(t, Combine(&out, refs))

	sess, err := reader.Open(source.FromBytes(out.buf))
	require.NoError(t, err)
	defer sess.Close()

	x, err := sess.Read("alpha", "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), x)

	y, err := sess.Read("beta", "y")
	require.NoError(t, err)
	assert.Equal(t, int64(2), y)
}

func TestCombine_Positional_RoundTrip(t *testing.T) {
	a := value.NewSeq(value.Int(10), value.Int(11))
	b := value.NewSeq(value.Int(20))

	refs := []FileRef{
		{Source: source.FromBytes(packSample(t, a))},
		{Source: source.FromBytes(packSample(t, b))},
	}

	var out seekBuffer
	require.NoError(t, Combine(&out, refs))

	sess, err := reader.Open(source.FromBytes(out.buf))
	require.NoError(t, err)
	defer sess.Close()

	v, err := sess.Read(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(11), v)

	v, err = sess.Read(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)
}

func TestCombine_NameMix_Errors(t *testing.T) {
	a := value.Int(1)
	b := value.Int(2)

	refs := []FileRef{
		{Source: source.FromBytes(packSample(t, a)), Name: "named"},
		{Source: source.FromBytes(packSample(t, b))},
	}

	var out seekBuffer
	err := Combine(&out, refs)
	assert.ErrorIs(t, err, errs.ErrCombineNameMix)
}

func TestCombine_DuplicateName_Errors(t *testing.T) {
	a := value.Int(1)
	b := value.Int(2)

	refs := []FileRef{
		{Source: source.FromBytes(packSample(t, a)), Name: "dup"},
		{Source: source.FromBytes(packSample(t, b)), Name: "dup"},
	}

	var out seekBuffer
	err := Combine(&out, refs)
	assert.ErrorIs(t, err, errs.ErrDuplicateName)
}

func TestCombine_PayloadBytesCopiedVerbatim(t *testing.T) {
	a := value.NewSeq(value.String("hello"), value.String("world"))

	inputBytes := packSample(t, a)
	refs := []FileRef{{Source: source.FromBytes(inputBytes)}}

	var out seekBuffer
	require.NoError(t, Combine(&out, refs))

	// The single input's payload bytes must appear byte-for-byte somewhere
	// in the combined output (P6: no payload byte is re-encoded).
	assert.True(t, bytes.Contains(out.buf, payloadOnly(t, inputBytes)))
}

// payloadOnly extracts the raw payload region [PayloadStart, TOCStart) of an
// already-packed blob for a direct byte-containment check. TOCStart is
// absolute to the start of the file (spec §3.3, §6.1).
func payloadOnly(t *testing.T, blob []byte) []byte {
	t.Helper()

	var hdr format.Header
	require.NoError(t, hdr.Parse(blob[len(format.Magic):format.PayloadStart]))

	return blob[format.PayloadStart:hdr.TOCStart]
}
