package reader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/packer"
	"github.com/arloliu/msglc/source"
	"github.com/arloliu/msglc/value"
)

// seekBuffer adapts a []byte into an io.WriteSeeker for Pack in tests.
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

// countingSource wraps a source.Source and counts ReadAt calls, so tests can
// assert that a lazy Get touches far fewer bytes than the whole blob.
type countingSource struct {
	source.Source
	reads      int
	bytesTotal int64
}

func (c *countingSource) ReadAt(offset, length int64) ([]byte, error) {
	c.reads++
	c.bytesTotal += length

	return c.Source.ReadAt(offset, length)
}

func buildSample(t *testing.T, opts ...packer.Option) []byte {
	t.Helper()

	m := value.NewOrderedMap()
	m.Set("name", value.String("example"))
	m.Set("count", value.Int(42))
	m.Set("ratio", value.Float(0.5))

	inner := value.NewOrderedMap()
	inner.Set("city", value.String("Taipei"))
	inner.Set("zip", value.String("100"))
	m.Set("address", value.Value{Kind: value.KindMap, Map: inner})

	seq := make([]value.Value, 10)
	for i := range seq {
		seq[i] = value.Int(int64(i))
	}
	m.Set("items", value.NewSeq(seq...))

	var w seekBuffer
	require.NoError(t, packer.Pack(value.Value{Kind: value.KindMap, Map: m}, &w, opts...))

	return w.buf
}

func openSample(t *testing.T, data []byte, opts ...Option) *Session {
	t.Helper()

	sess, err := Open(source.FromBytes(data), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	return sess
}

func TestSession_RootIsLazyMap(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))
	sess := openSample(t, data)

	root, err := sess.Root()
	require.NoError(t, err)

	m, ok := root.(*LazyMap)
	require.True(t, ok)
	assert.True(t, m.Has("name"))
	assert.Equal(t, 5, m.Len())
}

func TestSession_Get_ScalarValues(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))
	sess := openSample(t, data)

	name, err := sess.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "example", name)

	count, err := sess.Get("count")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestSession_Read_PathSegments(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))
	sess := openSample(t, data)

	city, err := sess.Read("address", "city")
	require.NoError(t, err)
	assert.Equal(t, "Taipei", city)
}

func TestSession_Read_SlashSeparatedString(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))
	sess := openSample(t, data)

	city, err := sess.Read("address/city")
	require.NoError(t, err)
	assert.Equal(t, "Taipei", city)
}

func TestSession_Read_SequenceIndex(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))
	sess := openSample(t, data)

	v, err := sess.Read("items", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestSession_Read_KeyNotFound(t *testing.T) {
	data := buildSample(t)
	sess := openSample(t, data)

	_, err := sess.Read("missing")
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestSession_Read_IndexOutOfRange(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))
	sess := openSample(t, data)

	_, err := sess.Read("items", 999)
	assert.ErrorIs(t, err, errs.ErrIndexOutOfRange)
}

func TestSession_AfterClose_ReturnsSessionClosed(t *testing.T) {
	data := buildSample(t)
	sess, err := Open(source.FromBytes(data))
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	_, err = sess.Read("name")
	assert.ErrorIs(t, err, errs.ErrSessionClosed)
}

func TestSession_Get_OpaqueOnly_LazyReadFetchesFarLessThanWholeBlob(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))

	cs := &countingSource{Source: source.FromBytes(data)}
	sess, err := Open(cs)
	require.NoError(t, err)
	defer sess.Close()

	cs.bytesTotal = 0 // Open itself already read magic/header; TOC decodes on first Read below
	v, err := sess.Read("name")
	require.NoError(t, err)
	assert.Equal(t, "example", v)
	assert.Less(t, cs.bytesTotal, int64(len(data)))
}

func TestLazySeq_GroupedVariant_ResolvesIndividualElements(t *testing.T) {
	seq := make([]value.Value, 200)
	for i := range seq {
		seq[i] = value.Int(int64(i))
	}
	var w seekBuffer
	require.NoError(t, packer.Pack(value.NewSeq(seq...), &w, packer.WithConfig(&config.Config{
		SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096,
	})))

	sess := openSample(t, w.buf)

	root, err := sess.Root()
	require.NoError(t, err)
	ls, ok := root.(*LazySeq)
	require.True(t, ok)

	v, err := ls.At(197)
	require.NoError(t, err)
	assert.Equal(t, int64(197), v)

	v, err = ls.At(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestLazyMap_Equal_PlainValue(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))

	sess := openSample(t, data)

	root, err := sess.Root()
	require.NoError(t, err)

	m := root.(*LazyMap)

	plain, err := ToPlain(m)
	require.NoError(t, err)

	assert.True(t, m.Equal(plain))

	mismatch := value.NewMap()
	mismatch.Map.Set("name", value.String("not-example"))
	assert.False(t, m.Equal(mismatch))
}

func TestLazySeq_Equal_PlainValue(t *testing.T) {
	seq := value.NewSeq(value.Int(1), value.Int(2), value.Int(3))

	var w seekBuffer
	require.NoError(t, packer.Pack(seq, &w, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096})))

	sess := openSample(t, w.buf)

	root, err := sess.Root()
	require.NoError(t, err)

	s := root.(*LazySeq)

	assert.True(t, s.Equal(seq))
	assert.False(t, s.Equal(value.NewSeq(value.Int(1), value.Int(2))))
}

func TestSession_Cache_ReusesResolvedValue(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))

	cs := &countingSource{Source: source.FromBytes(data)}
	sess, err := Open(cs, WithCache(true))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Read("name")
	require.NoError(t, err)
	readsAfterFirst := cs.reads

	_, err = sess.Read("name")
	require.NoError(t, err)
	assert.Equal(t, readsAfterFirst, cs.reads)
}

func TestSession_CacheDisabled_ReReadsEveryTime(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))

	cs := &countingSource{Source: source.FromBytes(data)}
	sess, err := Open(cs, WithCache(false))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Read("name")
	require.NoError(t, err)
	readsAfterFirst := cs.reads

	_, err = sess.Read("name")
	require.NoError(t, err)
	assert.Greater(t, cs.reads, readsAfterFirst)
}

func TestToPlain_FastLoad_MaterializesWholeSubtree(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096, FastLoad: true}))
	sess := openSample(t, data)

	root, err := sess.Root()
	require.NoError(t, err)

	plain, err := ToPlain(root)
	require.NoError(t, err)
	assert.Equal(t, value.KindMap, plain.Kind)

	name, ok := plain.Map.Get("name")
	require.True(t, ok)
	assert.Equal(t, "example", name.Str)
}

func TestToPlain_FastLoadDisabled_WalksChildByChild(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096, FastLoad: false}))
	sess := openSample(t, data, WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096, FastLoad: false}))

	root, err := sess.Root()
	require.NoError(t, err)

	plain, err := ToPlain(root)
	require.NoError(t, err)

	ratio, ok := plain.Map.Get("ratio")
	require.True(t, ok)
	assert.Equal(t, 0.5, ratio.Float)
}

func TestOpen_TruncatedPayload_ReadFails(t *testing.T) {
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1, TrivialSize: 20, WriteBuffer: 4096}))

	truncated := data[:len(data)-1]

	sess, err := Open(source.FromBytes(truncated))
	require.NoError(t, err, "a truncated TOC tail must not prevent Open: the header is still intact")
	defer sess.Close()

	_, err = sess.Read("name")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidTOC) || errors.Is(err, errs.ErrTruncatedPayload),
		"truncated blob must fail with a decode/format error, got: %v", err)
}

func TestSession_OpaqueSmallMap_MaterializedAsWhole(t *testing.T) {
	// A large SmallObjThreshold forces the whole root to collapse into one
	// opaque leaf, decoded wholesale into a materialized LazyMap.
	data := buildSample(t, packer.WithConfig(&config.Config{SmallObjThreshold: 1 << 20, TrivialSize: 20, WriteBuffer: 4096}))
	sess := openSample(t, data)

	root, err := sess.Root()
	require.NoError(t, err)

	m, ok := root.(*LazyMap)
	require.True(t, ok)
	assert.NotNil(t, m.materialized)

	v, err := m.Get("count")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}
