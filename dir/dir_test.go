package dir

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/disk"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/inode"
)

func newDir(t *testing.T) (*Dir, *inode.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.bin")
	d := disk.NewDevice()
	require.NoError(t, d.Create(path, 4))
	require.NoError(t, d.Open(path))
	require.NoError(t, d.Format())
	t.Cleanup(func() { d.Close() })
	s := inode.NewStore(d)
	require.NoError(t, s.Init(disk.ComputeLayout(d.TotalBlocks())))
	return New(d, s), s
}

func mkdirInode(t *testing.T, dr *Dir, s *inode.Store, parent common.Inum) common.Inum {
	t.Helper()
	in, err := s.AllocInode()
	require.NoError(t, err)
	ip, err := s.ReadInode(in)
	require.NoError(t, err)
	ip.Mode = common.ModeDir | common.PermRead | common.PermWrite | common.PermExec
	ip.LinkCount = 2
	require.NoError(t, s.WriteInode(in, ip))
	_, err = s.AllocDataBlocks(in, 1)
	require.NoError(t, err)
	require.NoError(t, dr.Write(in, DotEntries(in, parent)))
	return in
}

func TestEntryGeometry(t *testing.T) {
	assert.Equal(t, uint64(264), EntrySize)
	assert.Equal(t, uint64(15), EntriesPerBlock)
}

func TestFreshDirectory(t *testing.T) {
	dr, s := newDir(t)
	in := mkdirInode(t, dr, s, common.RootInum)

	entries, err := dr.Read(in)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ".", entries[0].Name)
	assert.Equal(t, in, entries[0].Inum)
	assert.Equal(t, "..", entries[1].Name)
	assert.Equal(t, common.RootInum, entries[1].Inum)

	ip, err := s.ReadInode(in)
	require.NoError(t, err)
	assert.Equal(t, int64(2*EntrySize), ip.Size)
}

func TestReadRejectsNonDirectory(t *testing.T) {
	dr, s := newDir(t)
	in, err := s.AllocInode()
	require.NoError(t, err)
	ip, err := s.ReadInode(in)
	require.NoError(t, err)
	ip.Mode = common.ModeRegular
	require.NoError(t, s.WriteInode(in, ip))

	_, err = dr.Read(in)
	assert.True(t, fserr.IsKind(err, fserr.NotADirectory))
}

func TestAddLookupRemove(t *testing.T) {
	dr, s := newDir(t)
	in := mkdirInode(t, dr, s, common.RootInum)

	require.NoError(t, dr.AddEntry(in, "hello.txt", 42))

	got, err := dr.Lookup(in, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, common.Inum(42), got)

	err = dr.AddEntry(in, "hello.txt", 43)
	assert.True(t, fserr.IsKind(err, fserr.AlreadyExists))

	require.NoError(t, dr.RemoveEntry(in, "hello.txt"))
	_, err = dr.Lookup(in, "hello.txt")
	assert.True(t, fserr.IsKind(err, fserr.NotFound))

	err = dr.RemoveEntry(in, "hello.txt")
	assert.True(t, fserr.IsKind(err, fserr.NotFound))
}

func TestExactlyOneBlockOfEntries(t *testing.T) {
	dr, s := newDir(t)
	in := mkdirInode(t, dr, s, common.RootInum)

	// 2 dot entries + 13 more fill one block exactly
	for i := 0; i < 13; i++ {
		require.NoError(t, dr.AddEntry(in, fmt.Sprintf("f%03d", i), common.Inum(i+1)))
	}
	blks, err := s.DataBlocks(in)
	require.NoError(t, err)
	assert.Len(t, blks, 1, "15 entries fit one block")

	// one more spills
	require.NoError(t, dr.AddEntry(in, "spill", 99))
	blks, err = s.DataBlocks(in)
	require.NoError(t, err)
	assert.Len(t, blks, 2)

	entries, err := dr.Read(in)
	require.NoError(t, err)
	assert.Len(t, entries, 16)
}

func TestRemoveKeepsBlocks(t *testing.T) {
	dr, s := newDir(t)
	in := mkdirInode(t, dr, s, common.RootInum)
	for i := 0; i < 20; i++ {
		require.NoError(t, dr.AddEntry(in, fmt.Sprintf("f%03d", i), common.Inum(i+1)))
	}
	blks, err := s.DataBlocks(in)
	require.NoError(t, err)
	require.Len(t, blks, 2)

	for i := 0; i < 20; i++ {
		require.NoError(t, dr.RemoveEntry(in, fmt.Sprintf("f%03d", i)))
	}
	blks, err = s.DataBlocks(in)
	require.NoError(t, err)
	assert.Len(t, blks, 2, "removal does not shrink directory storage")

	entries, err := dr.Read(in)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the dot entries remain")
}

func TestPayloadSizeInvariant(t *testing.T) {
	dr, s := newDir(t)
	in := mkdirInode(t, dr, s, common.RootInum)
	for i := 0; i < 7; i++ {
		require.NoError(t, dr.AddEntry(in, fmt.Sprintf("n%d", i), common.Inum(i+1)))
	}
	ip, err := s.ReadInode(in)
	require.NoError(t, err)
	assert.Zero(t, uint64(ip.Size)%EntrySize, "payload is a whole number of entries")
	assert.Equal(t, int64(9*EntrySize), ip.Size)
}

func TestLongNameTruncation(t *testing.T) {
	dr, s := newDir(t)
	in := mkdirInode(t, dr, s, common.RootInum)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, dr.AddEntry(in, string(long), 5))
	entries, err := dr.Read(in)
	require.NoError(t, err)
	assert.Len(t, entries[2].Name, common.MaxFilenameLen)
}
