package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/msglc/internal/options"
)

func TestDefaults(t *testing.T) {
	d := Defaults()

	assert.Equal(t, 8*1024, d.SmallObjThreshold)
	assert.Equal(t, 20, d.TrivialSize)
	assert.Equal(t, 8<<20, d.WriteBuffer)
	assert.Equal(t, 64<<10, d.ReadBuffer)
	assert.True(t, d.FastLoad)
	assert.InDelta(t, 0.3, d.FastLoadThreshold, 1e-9)
	assert.Equal(t, 16<<20, d.CopyChunk)
}

func TestConfigure_ProcessWide(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, Configure(resetAll())) })

	require.NoError(t, Configure(WithSmallObjThreshold(4096), WithTrivialSize(8)))

	cur := Current()
	assert.Equal(t, 4096, cur.SmallObjThreshold)
	assert.Equal(t, 8, cur.TrivialSize)
}

func TestResolve_DoesNotMutateProcessWide(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, Configure(resetAll())) })

	require.NoError(t, Configure(WithReadBuffer(1234)))

	override, err := Resolve(WithReadBuffer(99))
	require.NoError(t, err)

	assert.Equal(t, 99, override.ReadBuffer)
	assert.Equal(t, 1234, Current().ReadBuffer, "Resolve must not affect the process-wide Config")
}

func TestClone_IsIndependent(t *testing.T) {
	c := Defaults()
	cp := c.Clone()
	cp.SmallObjThreshold = 1

	assert.NotEqual(t, c.SmallObjThreshold, cp.SmallObjThreshold)
}

// resetAll restores every field to its documented default in one option set.
func resetAll() Option {
	d := Defaults()

	return options.NoError(func(c *Config) { *c = *d })
}

func TestGCGuard_CountedAcquireRelease(t *testing.T) {
	var g GCGuard

	release1 := g.Acquire()
	assert.EqualValues(t, 1, g.count.Load())

	release2 := g.Acquire()
	assert.EqualValues(t, 2, g.count.Load())

	release1()
	assert.EqualValues(t, 1, g.count.Load())

	release2()
	assert.EqualValues(t, 0, g.count.Load())
}

func TestGCGuard_ReleaseIsIdempotent(t *testing.T) {
	var g GCGuard

	release := g.Acquire()
	release()
	release()

	assert.EqualValues(t, 0, g.count.Load())
}
