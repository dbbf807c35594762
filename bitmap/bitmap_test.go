package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindfs/mindfs/common"
)

func TestAllocateLowestFirst(t *testing.T) {
	bm := New(32)
	assert.Equal(t, uint64(32), bm.NumFree())

	n, err := bm.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	n, err = bm.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	require.NoError(t, bm.Free(0))
	n, err = bm.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n, "lowest clear bit comes back first")

	assert.Equal(t, uint64(30), bm.NumFree())
	assert.Equal(t, uint64(2), bm.Used())
}

func TestAllocateExhaustion(t *testing.T) {
	bm := New(9)
	for i := uint64(0); i < 9; i++ {
		n, err := bm.Allocate()
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	_, err := bm.Allocate()
	assert.ErrorIs(t, err, ErrNoFree)
}

func TestFreeSemantics(t *testing.T) {
	bm := New(16)
	n, err := bm.Allocate()
	require.NoError(t, err)
	assert.True(t, bm.IsSet(n))

	require.NoError(t, bm.Free(n))
	assert.False(t, bm.IsSet(n))

	// freeing a clear bit is a silent no-op
	require.NoError(t, bm.Free(n))
	assert.Equal(t, uint64(16), bm.NumFree())

	assert.Error(t, bm.Free(16), "out of range")
}

func TestClear(t *testing.T) {
	bm := New(100)
	for i := 0; i < 10; i++ {
		_, err := bm.Allocate()
		require.NoError(t, err)
	}
	bm.Clear()
	assert.Equal(t, uint64(100), bm.NumFree())
	assert.False(t, bm.IsSet(0))
}

// memDevice is a block store for persistence tests.
type memDevice struct {
	blocks map[uint64][]byte
}

func newMemDevice() *memDevice {
	return &memDevice{blocks: make(map[uint64][]byte)}
}

func (d *memDevice) ReadBlock(blkno uint64, buf []byte) error {
	if b, ok := d.blocks[blkno]; ok {
		copy(buf, b)
	} else {
		for i := range buf {
			buf[i] = 0
		}
	}
	return nil
}

func (d *memDevice) WriteBlock(blkno uint64, buf []byte) error {
	b := make([]byte, len(buf))
	copy(b, buf)
	d.blocks[blkno] = b
	return nil
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dev := newMemDevice()
	total := common.NBitBlock + 100 // spills into a second block
	bm := New(total)
	var allocated []uint64
	for i := 0; i < 1000; i++ {
		n, err := bm.Allocate()
		require.NoError(t, err)
		allocated = append(allocated, n)
	}
	require.NoError(t, bm.SaveTo(dev, 7, 2))

	bm2 := New(total)
	require.NoError(t, bm2.LoadFrom(dev, 7, 2))
	assert.Equal(t, bm.NumFree(), bm2.NumFree(), "free count recomputed by popcount")
	for _, n := range allocated {
		assert.True(t, bm2.IsSet(n))
	}
	assert.False(t, bm2.IsSet(allocated[len(allocated)-1]+1))
}
