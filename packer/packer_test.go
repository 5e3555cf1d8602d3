package packer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/msglc/codec"
	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/format"
	"github.com/arloliu/msglc/toc"
	"github.com/arloliu/msglc/value"
)

// seekBuffer adapts a []byte into an io.WriteSeeker for tests, the
// same role an *os.File plays in production.
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

func samplePayloadValue() value.Value {
	m := value.NewOrderedMap()
	m.Set("name", value.String("example"))
	m.Set("count", value.Int(42))
	m.Set("ratio", value.Float(0.5))

	seq := make([]value.Value, 5)
	for i := range seq {
		seq[i] = value.Int(int64(i))
	}
	m.Set("items", value.NewSeq(seq...))

	return value.Value{Kind: value.KindMap, Map: m}
}

func TestPack_RootAndHeader(t *testing.T) {
	var w seekBuffer

	require.NoError(t, Pack(samplePayloadValue(), &w))

	assert.True(t, format.CheckMagic(w.buf))

	var hdr format.Header
	require.NoError(t, hdr.Parse(w.buf[len(format.Magic):len(format.Magic)+format.HeaderSize]))

	assert.Greater(t, hdr.TOCLength, uint64(0))
	assert.Equal(t, int64(len(w.buf)), int64(hdr.TOCStart)+int64(hdr.TOCLength))
}

func TestPack_TOCDecodesAndSatisfiesInvariants(t *testing.T) {
	var w seekBuffer
	require.NoError(t, Pack(samplePayloadValue(), &w, WithConfig(&config.Config{
		SmallObjThreshold: 1, // force expansion of every container
		TrivialSize:       20,
		WriteBuffer:       4096,
	})))

	var hdr format.Header
	require.NoError(t, hdr.Parse(w.buf[len(format.Magic):len(format.Magic)+format.HeaderSize]))

	tocBytes := w.buf[int64(hdr.TOCStart) : int64(hdr.TOCStart)+int64(hdr.TOCLength)]
	node, err := toc.DecodeFromBytes(tocBytes, codec.Default())
	require.NoError(t, err)

	require.NoError(t, toc.Check(node))
	assert.Equal(t, toc.VariantKeyed, node.Variant)
}

func TestPack_SmallObjThresholdCollapsesToLeaf(t *testing.T) {
	var w seekBuffer
	require.NoError(t, Pack(samplePayloadValue(), &w, WithConfig(&config.Config{
		SmallObjThreshold: 1 << 20, // larger than the whole payload
		TrivialSize:       20,
		WriteBuffer:       4096,
	})))

	var hdr format.Header
	require.NoError(t, hdr.Parse(w.buf[len(format.Magic):len(format.Magic)+format.HeaderSize]))

	tocBytes := w.buf[int64(hdr.TOCStart) : int64(hdr.TOCStart)+int64(hdr.TOCLength)]
	node, err := toc.DecodeFromBytes(tocBytes, codec.Default())
	require.NoError(t, err)

	assert.Equal(t, toc.VariantNone, node.Variant)
}

func TestPack_SameValueDifferentThresholds_DifferentTOCSize(t *testing.T) {
	v := samplePayloadValue()

	var small, large seekBuffer
	require.NoError(t, Pack(v, &small, WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096})))
	require.NoError(t, Pack(v, &large, WithConfig(&config.Config{SmallObjThreshold: 1 << 20, TrivialSize: 20, WriteBuffer: 4096})))

	var smallHdr, largeHdr format.Header
	require.NoError(t, smallHdr.Parse(small.buf[len(format.Magic):len(format.Magic)+format.HeaderSize]))
	require.NoError(t, largeHdr.Parse(large.buf[len(format.Magic):len(format.Magic)+format.HeaderSize]))

	assert.NotEqual(t, smallHdr.TOCLength, largeHdr.TOCLength)
	// Payload bytes themselves are identical regardless of TOC shape.
	assert.Equal(t, smallHdr.TOCStart, largeHdr.TOCStart)
}

func TestPack_GroupedVariantForLongTrivialRun(t *testing.T) {
	seq := make([]value.Value, 200)
	for i := range seq {
		seq[i] = value.Int(int64(i))
	}
	root := value.NewSeq(seq...)

	var w seekBuffer
	require.NoError(t, Pack(root, &w, WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096})))

	var hdr format.Header
	require.NoError(t, hdr.Parse(w.buf[len(format.Magic):len(format.Magic)+format.HeaderSize]))
	tocBytes := w.buf[int64(hdr.TOCStart) : int64(hdr.TOCStart)+int64(hdr.TOCLength)]
	node, err := toc.DecodeFromBytes(tocBytes, codec.Default())
	require.NoError(t, err)

	assert.Equal(t, toc.VariantGrouped, node.Variant)
	require.NoError(t, toc.Check(node))
}

func TestPack_GroupedVariant_BlocksPartitionedBySmallObjThreshold(t *testing.T) {
	seq := make([]value.Value, 200)
	for i := range seq {
		seq[i] = value.Int(int64(i))
	}
	root := value.NewSeq(seq...)

	var w seekBuffer
	// Each int encodes to 1-2 bytes; a threshold of 50 should group several
	// elements per block instead of one-per-block or one flat 64-count block.
	require.NoError(t, Pack(root, &w, WithConfig(&config.Config{SmallObjThreshold: 50, TrivialSize: 20, WriteBuffer: 4096})))

	var hdr format.Header
	require.NoError(t, hdr.Parse(w.buf[len(format.Magic):len(format.Magic)+format.HeaderSize]))
	tocBytes := w.buf[int64(hdr.TOCStart) : int64(hdr.TOCStart)+int64(hdr.TOCLength)]
	node, err := toc.DecodeFromBytes(tocBytes, codec.Default())
	require.NoError(t, err)
	require.Equal(t, toc.VariantGrouped, node.Variant)
	require.NoError(t, toc.Check(node))

	require.NotEmpty(t, node.Grouped)
	for i, g := range node.Grouped {
		size := g.End - g.Start
		if i < len(node.Grouped)-1 {
			// Every non-final block must meet or exceed the threshold, per
			// spec §4.3.1's "ties broken by slight overshoot".
			assert.GreaterOrEqual(t, size, uint64(50))
		}
		assert.Greater(t, g.Count, 1, "block %d should span more than one element at this threshold", i)
	}

	totalCount := 0
	for _, g := range node.Grouped {
		totalCount += g.Count
	}
	assert.Equal(t, 200, totalCount)
}

func TestPackStream_MatchesEquivalentMap(t *testing.T) {
	entries := []value.MapEntry{
		{Key: "a", Value: value.Int(1)},
		{Key: "b", Value: value.Int(2)},
		{Key: "c", Value: value.Int(3)},
	}

	var w seekBuffer
	err := PackStream(len(entries), func(yield func(string, value.Value) bool) {
		for _, e := range entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}, &w)
	require.NoError(t, err)

	assert.True(t, format.CheckMagic(w.buf))
}

func TestPackStream_CountMismatch(t *testing.T) {
	var w seekBuffer
	err := PackStream(3, func(yield func(string, value.Value) bool) {
		yield("only-one", value.Int(1))
	}, &w)

	require.Error(t, err)
}

func TestPack_RoundTripBytesDeterministic(t *testing.T) {
	v := samplePayloadValue()

	var w1, w2 bytes.Buffer
	var sb1, sb2 seekBuffer
	require.NoError(t, Pack(v, &sb1))
	require.NoError(t, Pack(v, &sb2))

	w1.Write(sb1.buf)
	w2.Write(sb2.buf)

	assert.Equal(t, w1.Bytes(), w2.Bytes())
}
