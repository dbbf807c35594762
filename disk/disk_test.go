package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindfs/mindfs/common"
)

func newImage(t *testing.T, sizeMB int) (*Device, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.bin")
	d := NewDevice()
	require.NoError(t, d.Create(path, sizeMB))
	require.NoError(t, d.Open(path))
	t.Cleanup(func() { d.Close() })
	return d, path
}

func TestCreateSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.bin")
	d := NewDevice()
	require.NoError(t, d.Create(path, 4))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4*MB), st.Size())
	assert.False(t, d.IsOpen(), "create leaves the device unbound")
}

func TestCreateRejectsBadSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.bin")
	d := NewDevice()
	assert.Error(t, d.Create(path, 0))
	assert.Error(t, d.Create(path, -1))
}

func TestOpenComputesBlocks(t *testing.T) {
	d, _ := newImage(t, 4)
	assert.True(t, d.IsOpen())
	assert.Equal(t, uint64(1024), d.TotalBlocks())
}

func TestBlockRoundTrip(t *testing.T) {
	d, _ := newImage(t, 4)
	out := make([]byte, common.BlockSize)
	for i := range out {
		out[i] = byte(i % 251)
	}
	require.NoError(t, d.WriteBlock(17, out))
	in := make([]byte, common.BlockSize)
	require.NoError(t, d.ReadBlock(17, in))
	assert.Equal(t, out, in)
}

func TestBlockBounds(t *testing.T) {
	d, _ := newImage(t, 4)
	buf := make([]byte, common.BlockSize)
	assert.Error(t, d.ReadBlock(1024, buf))
	assert.Error(t, d.WriteBlock(1024, buf))
	assert.Error(t, d.ReadBlock(0, buf[:10]), "buffer must be block-sized")
}

func TestIORequiresOpen(t *testing.T) {
	d := NewDevice()
	buf := make([]byte, common.BlockSize)
	assert.Error(t, d.ReadBlock(0, buf))
	assert.Error(t, d.WriteBlock(0, buf))
}

func TestCloseIdempotent(t *testing.T) {
	d, _ := newImage(t, 4)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.False(t, d.IsOpen())
}

func TestDoubleOpenRefused(t *testing.T) {
	d, path := newImage(t, 4)
	assert.Error(t, d.Open(path), "already bound")
}

func TestLayout1024Blocks(t *testing.T) {
	l := ComputeLayout(1024)
	assert.Equal(t, uint64(0), l.SuperblockStart)
	assert.Equal(t, uint64(1), l.SuperblockBlocks)
	// 1024/10 = 102 inodes, rounded up to 4 full table blocks of 32
	assert.Equal(t, uint64(128), l.TotalInodes)
	assert.Equal(t, uint64(1), l.InodeTableStart)
	assert.Equal(t, uint64(4), l.InodeTableBlocks)
	assert.Equal(t, uint64(5), l.InodeBitmapStart)
	assert.Equal(t, uint64(1), l.InodeBitmapBlocks)
	assert.Equal(t, uint64(6), l.DataBitmapStart)
	assert.Equal(t, uint64(1), l.DataBitmapBlocks)
	assert.Equal(t, uint64(7), l.DataStart)
	assert.Equal(t, uint64(1017), l.DataBlocks)
}

func TestLayoutDeterministic(t *testing.T) {
	assert.Equal(t, ComputeLayout(25600), ComputeLayout(25600))
}

func TestFormatWritesSuperblock(t *testing.T) {
	d, _ := newImage(t, 4)
	require.NoError(t, d.Format())
	sb, err := d.ReadSuperblock()
	require.NoError(t, err)
	assert.Equal(t, common.Magic, sb.Magic)
	assert.Equal(t, uint32(1024), sb.TotalBlocks)
	assert.Equal(t, uint32(128), sb.TotalInodes)
	assert.Equal(t, uint32(128), sb.FreeInodes)
	assert.Equal(t, uint32(1017), sb.FreeBlocks)
	assert.Equal(t, uint32(common.BlockSize), sb.BlockSize)
	assert.Equal(t, uint32(7), sb.DataStart)
}

func TestFormatIdempotentLayout(t *testing.T) {
	d, _ := newImage(t, 4)
	require.NoError(t, d.Format())
	sb1, err := d.ReadSuperblock()
	require.NoError(t, err)
	require.NoError(t, d.Format())
	sb2, err := d.ReadSuperblock()
	require.NoError(t, err)
	sb1.MountTime, sb2.MountTime = 0, 0
	sb1.WriteTime, sb2.WriteTime = 0, 0
	assert.Equal(t, sb1, sb2)
}

func TestMountRejectsBadMagic(t *testing.T) {
	d, _ := newImage(t, 4)
	blk := make([]byte, common.BlockSize)
	require.NoError(t, d.WriteBlock(0, blk))
	_, err := d.ReadSuperblock()
	assert.Error(t, err)
}
