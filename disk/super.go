package disk

import (
	"time"

	"github.com/tchajed/marshal"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/fserr"
)

// Superblock is block 0 of a formatted image. All integer fields are
// little-endian; counts are 32 bits, timestamps 64.
type Superblock struct {
	Magic            uint32
	TotalBlocks      uint32
	FreeBlocks       uint32
	TotalInodes      uint32
	FreeInodes       uint32
	BlockSize        uint32
	InodeTableStart  uint32
	DataStart        uint32
	InodeBitmapStart uint32
	DataBitmapStart  uint32
	MountTime        int64
	WriteTime        int64
}

func (sb *Superblock) encode() []byte {
	enc := marshal.NewEnc(common.BlockSize)
	enc.PutInt32(sb.Magic)
	enc.PutInt32(sb.TotalBlocks)
	enc.PutInt32(sb.FreeBlocks)
	enc.PutInt32(sb.TotalInodes)
	enc.PutInt32(sb.FreeInodes)
	enc.PutInt32(sb.BlockSize)
	enc.PutInt32(sb.InodeTableStart)
	enc.PutInt32(sb.DataStart)
	enc.PutInt32(sb.InodeBitmapStart)
	enc.PutInt32(sb.DataBitmapStart)
	enc.PutInt(uint64(sb.MountTime))
	enc.PutInt(uint64(sb.WriteTime))
	return enc.Finish()
}

func decodeSuperblock(blk []byte) *Superblock {
	dec := marshal.NewDec(blk)
	sb := &Superblock{}
	sb.Magic = dec.GetInt32()
	sb.TotalBlocks = dec.GetInt32()
	sb.FreeBlocks = dec.GetInt32()
	sb.TotalInodes = dec.GetInt32()
	sb.FreeInodes = dec.GetInt32()
	sb.BlockSize = dec.GetInt32()
	sb.InodeTableStart = dec.GetInt32()
	sb.DataStart = dec.GetInt32()
	sb.InodeBitmapStart = dec.GetInt32()
	sb.DataBitmapStart = dec.GetInt32()
	sb.MountTime = int64(dec.GetInt())
	sb.WriteTime = int64(dec.GetInt())
	return sb
}

// ReadSuperblock loads block 0 and validates the magic number.
func (d *Device) ReadSuperblock() (*Superblock, error) {
	buf := make([]byte, common.BlockSize)
	if err := d.ReadBlock(0, buf); err != nil {
		return nil, err
	}
	sb := decodeSuperblock(buf)
	if sb.Magic != common.Magic {
		return nil, fserr.Newf(fserr.IOError, "bad magic 0x%X: not a formatted image", sb.Magic)
	}
	return sb, nil
}

// WriteSuperblock rewrites block 0.
func (d *Device) WriteSuperblock(sb *Superblock) error {
	return d.WriteBlock(0, sb.encode())
}

// Format lays a fresh filesystem onto an open image: superblock written,
// bitmaps and inode table zeroed. The root directory is installed by the
// facade on first mount, not here.
func (d *Device) Format() error {
	if !d.open {
		return fserr.New(fserr.NotOpen, "format failed: image not open")
	}
	l := ComputeLayout(d.totalBlocks)
	now := time.Now().Unix()
	sb := &Superblock{
		Magic:            common.Magic,
		TotalBlocks:      uint32(d.totalBlocks),
		FreeBlocks:       uint32(l.DataBlocks),
		TotalInodes:      uint32(l.TotalInodes),
		FreeInodes:       uint32(l.TotalInodes),
		BlockSize:        uint32(common.BlockSize),
		InodeTableStart:  uint32(l.InodeTableStart),
		DataStart:        uint32(l.DataStart),
		InodeBitmapStart: uint32(l.InodeBitmapStart),
		DataBitmapStart:  uint32(l.DataBitmapStart),
		MountTime:        now,
		WriteTime:        now,
	}
	if err := d.WriteSuperblock(sb); err != nil {
		return fserr.Pass(fserr.FormatFailed, err, "failed to write superblock")
	}
	if err := d.writeZeroed(l.InodeBitmapStart, l.InodeBitmapBlocks); err != nil {
		return fserr.Pass(fserr.FormatFailed, err, "failed to zero inode bitmap")
	}
	if err := d.writeZeroed(l.DataBitmapStart, l.DataBitmapBlocks); err != nil {
		return fserr.Pass(fserr.FormatFailed, err, "failed to zero data bitmap")
	}
	if err := d.writeZeroed(l.InodeTableStart, l.InodeTableBlocks); err != nil {
		return fserr.Pass(fserr.FormatFailed, err, "failed to zero inode table")
	}
	return nil
}
