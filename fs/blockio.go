package fs

import (
	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/disk"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/util"
)

// readFromBlocks copies len(buf) bytes out of the concatenation of
// blks, starting at byte offset. The first block read is spliced from
// offset % BlockSize.
func readFromBlocks(dev *disk.Device, blks []common.Bnum, offset int64, buf []byte) error {
	size := int64(len(buf))
	if size == 0 {
		return nil
	}
	if len(blks) == 0 {
		return fserr.New(fserr.InvalidArgument, "no data blocks to read from")
	}
	idx := offset / int64(common.BlockSize)
	within := offset % int64(common.BlockSize)
	blk := make([]byte, common.BlockSize)
	var copied int64
	for copied < size {
		if idx >= int64(len(blks)) {
			return fserr.New(fserr.IOError, "read past end of block list")
		}
		if err := dev.ReadBlock(uint64(blks[idx]), blk); err != nil {
			return err
		}
		n := util.Min64(int64(common.BlockSize)-within, size-copied)
		copy(buf[copied:copied+n], blk[within:within+n])
		copied += n
		within = 0
		idx++
	}
	return nil
}

// writeToBlocks is the mirror traversal. A partially covered block
// (first or last) is read-modify-written to preserve its other bytes;
// fully covered blocks skip the read.
func writeToBlocks(dev *disk.Device, blks []common.Bnum, offset int64, buf []byte) error {
	size := int64(len(buf))
	if size == 0 {
		return nil
	}
	if len(blks) == 0 {
		return fserr.New(fserr.InvalidArgument, "no data blocks to write to")
	}
	idx := offset / int64(common.BlockSize)
	within := offset % int64(common.BlockSize)
	blk := make([]byte, common.BlockSize)
	var written int64
	for written < size {
		if idx >= int64(len(blks)) {
			return fserr.New(fserr.IOError, "write past end of block list")
		}
		n := util.Min64(int64(common.BlockSize)-within, size-written)
		partial := n < int64(common.BlockSize)
		if partial {
			if err := dev.ReadBlock(uint64(blks[idx]), blk); err != nil {
				return err
			}
		}
		copy(blk[within:within+n], buf[written:written+n])
		if err := dev.WriteBlock(uint64(blks[idx]), blk); err != nil {
			return err
		}
		written += n
		within = 0
		idx++
	}
	return nil
}
