// dir encodes directory payloads as dense arrays of fixed-size entries
// and edits them by whole-directory rewrite.
package dir

import (
	"time"

	"github.com/tchajed/marshal"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/disk"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/inode"
	"github.com/mindfs/mindfs/util"
)

const (
	// EntrySize is the on-image size of one directory entry: u32 inode
	// id, 256-byte name buffer, u32 name length.
	EntrySize uint64 = 4 + (common.MaxFilenameLen + 1) + 4

	// EntriesPerBlock is how many entries one directory block holds.
	EntriesPerBlock uint64 = common.BlockSize / EntrySize
)

// Entry is one live directory slot. A slot is live iff its stored name
// length is positive.
type Entry struct {
	Inum common.Inum
	Name string
}

func encodeEntry(enc marshal.Enc, e Entry) {
	name := []byte(e.Name)
	if len(name) > common.MaxFilenameLen {
		name = name[:common.MaxFilenameLen]
	}
	buf := make([]byte, common.MaxFilenameLen+1)
	copy(buf, name)
	enc.PutInt32(uint32(e.Inum))
	enc.PutBytes(buf)
	enc.PutInt32(uint32(len(name)))
}

func decodeEntry(dec marshal.Dec) (Entry, bool) {
	in := dec.GetInt32()
	buf := dec.GetBytes(common.MaxFilenameLen + 1)
	nameLen := dec.GetInt32()
	if nameLen == 0 {
		return Entry{}, false
	}
	if nameLen > common.MaxFilenameLen {
		nameLen = common.MaxFilenameLen
	}
	name := make([]byte, nameLen)
	copy(name, buf[:nameLen])
	return Entry{Inum: common.Inum(in), Name: string(name)}, true
}

// Dir reads and rewrites directory payloads through the inode store.
type Dir struct {
	d     *disk.Device
	store *inode.Store
}

func New(d *disk.Device, store *inode.Store) *Dir {
	return &Dir{d: d, store: store}
}

// Read collects the live entries of directory in, in block order.
func (dr *Dir) Read(in common.Inum) ([]Entry, error) {
	ip, err := dr.store.ReadInode(in)
	if err != nil {
		return nil, err
	}
	if !ip.IsDir() {
		return nil, fserr.Newf(fserr.NotADirectory, "inode %d is not a directory", in)
	}
	if ip.Size == 0 {
		return nil, nil
	}
	blks, err := dr.store.DataBlocks(in)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	buf := make([]byte, common.BlockSize)
	for _, b := range blks {
		if err := dr.d.ReadBlock(uint64(b), buf); err != nil {
			return nil, err
		}
		dec := marshal.NewDec(buf)
		for i := uint64(0); i < EntriesPerBlock; i++ {
			if e, live := decodeEntry(dec); live {
				entries = append(entries, e)
			}
		}
	}
	return entries, nil
}

// Write packs entries densely into the directory's blocks, allocating
// any deficit, and updates the inode's size and mtime. Removals do not
// shrink the directory's block allocation.
func (dr *Dir) Write(in common.Inum, entries []Entry) error {
	ip, err := dr.store.ReadInode(in)
	if err != nil {
		return err
	}
	if !ip.IsDir() {
		return fserr.Newf(fserr.NotADirectory, "inode %d is not a directory", in)
	}

	requiredSize := uint64(len(entries)) * EntrySize
	// entries never straddle a block, so count blocks in whole entries
	requiredBlocks := util.RoundUp(uint64(len(entries)), EntriesPerBlock)

	blks, err := dr.store.DataBlocks(in)
	if err != nil {
		return err
	}
	if uint64(len(blks)) < requiredBlocks {
		if _, err := dr.store.AllocDataBlocks(in, requiredBlocks-uint64(len(blks))); err != nil {
			return err
		}
		blks, err = dr.store.DataBlocks(in)
		if err != nil {
			return err
		}
	}

	idx := 0
	for _, b := range blks {
		// zero-filled buffer keeps unused tail slots clean
		enc := marshal.NewEnc(common.BlockSize)
		for j := uint64(0); j < EntriesPerBlock && idx < len(entries); j++ {
			encodeEntry(enc, entries[idx])
			idx++
		}
		if err := dr.d.WriteBlock(uint64(b), enc.Finish()); err != nil {
			return err
		}
	}

	// AllocDataBlocks rewrote the inode's pointer graph; reload before
	// touching size so those pointers survive.
	ip, err = dr.store.ReadInode(in)
	if err != nil {
		return err
	}
	ip.Size = int64(requiredSize)
	ip.Mtime = time.Now().Unix()
	return dr.store.WriteInode(in, ip)
}

// Lookup scans directory in for an entry named name, byte for byte.
func (dr *Dir) Lookup(in common.Inum, name string) (common.Inum, error) {
	entries, err := dr.Read(in)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Inum, nil
		}
	}
	return 0, fserr.Newf(fserr.NotFound, "directory entry not found: %s", name)
}

// AddEntry appends name -> target, refusing duplicates.
func (dr *Dir) AddEntry(in common.Inum, name string, target common.Inum) error {
	entries, err := dr.Read(in)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == name {
			return fserr.Newf(fserr.AlreadyExists, "directory entry already exists: %s", name)
		}
	}
	entries = append(entries, Entry{Inum: target, Name: name})
	return dr.Write(in, entries)
}

// RemoveEntry erases name from directory in.
func (dr *Dir) RemoveEntry(in common.Inum, name string) error {
	entries, err := dr.Read(in)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Name == name {
			entries = append(entries[:i], entries[i+1:]...)
			return dr.Write(in, entries)
		}
	}
	return fserr.Newf(fserr.NotFound, "directory entry not found: %s", name)
}

// DotEntries is the initial payload of a fresh directory.
func DotEntries(self, parent common.Inum) []Entry {
	return []Entry{
		{Inum: self, Name: "."},
		{Inum: parent, Name: ".."},
	}
}
