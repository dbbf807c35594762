package inode

import (
	"time"

	"github.com/tchajed/marshal"

	"github.com/mindfs/mindfs/bitmap"
	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/disk"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/util"
)

// Store owns the inode table and both allocation bitmaps. Every
// mutation persists the touched bitmap before reporting success; a
// failure after a bit flip rolls the flip back.
type Store struct {
	d       *disk.Device
	layout  disk.Layout
	inodeBm *bitmap.Bitmap
	dataBm  *bitmap.Bitmap
}

func NewStore(d *disk.Device) *Store {
	return &Store{d: d}
}

// Init sizes the bitmaps from the layout and loads them off the image.
func (s *Store) Init(l disk.Layout) error {
	s.layout = l
	s.inodeBm = bitmap.New(l.TotalInodes)
	s.dataBm = bitmap.New(l.DataBlocks)
	return s.ReloadBitmaps()
}

// ReloadBitmaps re-reads both bitmaps, e.g. after a format.
func (s *Store) ReloadBitmaps() error {
	if err := s.inodeBm.LoadFrom(s.d, s.layout.InodeBitmapStart, s.layout.InodeBitmapBlocks); err != nil {
		return err
	}
	return s.dataBm.LoadFrom(s.d, s.layout.DataBitmapStart, s.layout.DataBitmapBlocks)
}

func (s *Store) saveInodeBitmap() error {
	return s.inodeBm.SaveTo(s.d, s.layout.InodeBitmapStart, s.layout.InodeBitmapBlocks)
}

func (s *Store) saveDataBitmap() error {
	return s.dataBm.SaveTo(s.d, s.layout.DataBitmapStart, s.layout.DataBitmapBlocks)
}

func (s *Store) Layout() disk.Layout { return s.layout }

func (s *Store) TotalInodes() uint64     { return s.inodeBm.Total() }
func (s *Store) FreeInodes() uint64      { return s.inodeBm.NumFree() }
func (s *Store) TotalDataBlocks() uint64 { return s.dataBm.Total() }
func (s *Store) FreeDataBlocks() uint64  { return s.dataBm.NumFree() }

// IsAllocated reports whether the inode bitmap considers in live. The
// bitmap is the single authority for allocation.
func (s *Store) IsAllocated(in common.Inum) bool {
	return s.inodeBm.IsSet(uint64(in))
}

func (s *Store) inodePos(in common.Inum) (uint64, uint64, error) {
	if uint64(in) >= s.layout.TotalInodes {
		return 0, 0, fserr.Newf(fserr.InvalidInode, "invalid inode number: %d", in)
	}
	blk := s.layout.InodeTableStart + uint64(in)/common.InodesPerBlock
	off := (uint64(in) % common.InodesPerBlock) * common.InodeSize
	return blk, off, nil
}

// ReadInode decodes inode in from its table block.
func (s *Store) ReadInode(in common.Inum) (*Inode, error) {
	blk, off, err := s.inodePos(in)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, common.BlockSize)
	if err := s.d.ReadBlock(blk, buf); err != nil {
		return nil, err
	}
	return Decode(buf[off : off+common.InodeSize]), nil
}

// WriteInode stores ip at slot in. The containing block is read,
// modified, and rewritten so adjacent inodes survive.
func (s *Store) WriteInode(in common.Inum, ip *Inode) error {
	blk, off, err := s.inodePos(in)
	if err != nil {
		return err
	}
	buf := make([]byte, common.BlockSize)
	if err := s.d.ReadBlock(blk, buf); err != nil {
		return err
	}
	copy(buf[off:off+common.InodeSize], ip.Encode())
	return s.d.WriteBlock(blk, buf)
}

// AllocInode takes a free inode bit, writes a zeroed template at its
// slot, and persists the inode bitmap. Failures roll the bit back.
func (s *Store) AllocInode() (common.Inum, error) {
	bit, err := s.inodeBm.Allocate()
	if err != nil {
		return 0, fserr.New(fserr.NoFreeInodes, "no free inodes available")
	}
	in := common.Inum(bit)
	if err := s.WriteInode(in, NewInode()); err != nil {
		s.inodeBm.Free(bit)
		return 0, err
	}
	if err := s.saveInodeBitmap(); err != nil {
		s.inodeBm.Free(bit)
		return 0, err
	}
	return in, nil
}

// FreeInode releases every block reachable from in (direct, single
// indirect, and the full double-indirect graph), zeroes the on-image
// inode, clears its bit, and persists both bitmaps.
func (s *Store) FreeInode(in common.Inum) error {
	if !s.IsAllocated(in) {
		return fserr.Newf(fserr.InvalidArgument, "inode %d is not allocated", in)
	}
	ip, err := s.ReadInode(in)
	if err != nil {
		return err
	}
	if err := s.releaseAllBlocks(ip); err != nil {
		return err
	}
	if err := s.WriteInode(in, &Inode{}); err != nil {
		return err
	}
	if err := s.saveDataBitmap(); err != nil {
		return err
	}
	s.inodeBm.Free(uint64(in))
	return s.saveInodeBitmap()
}

func (s *Store) freeDataBlock(b common.Bnum) {
	abs := uint64(b)
	if abs < s.layout.DataStart {
		return
	}
	s.dataBm.Free(abs - s.layout.DataStart)
}

func (s *Store) releaseAllBlocks(ip *Inode) error {
	for _, b := range ip.Direct {
		if b != 0 {
			s.freeDataBlock(b)
		}
	}
	if !ptrUnset(ip.Indirect) {
		blks, err := s.readIndirect(common.Bnum(ip.Indirect))
		if err != nil {
			return err
		}
		for _, b := range blks {
			s.freeDataBlock(b)
		}
		s.freeDataBlock(common.Bnum(ip.Indirect))
	}
	if !ptrUnset(ip.DoubleIndirect) {
		slots, err := s.readIndirect(common.Bnum(ip.DoubleIndirect))
		if err != nil {
			return err
		}
		for _, slot := range slots {
			blks, err := s.readIndirect(slot)
			if err != nil {
				return err
			}
			for _, b := range blks {
				s.freeDataBlock(b)
			}
			s.freeDataBlock(slot)
		}
		s.freeDataBlock(common.Bnum(ip.DoubleIndirect))
	}
	return nil
}

// readIndirect enumerates the 32-bit slots of one indirect block,
// stopping at the first zero. Slot width is pinned at 32 bits
// regardless of host integer size.
func (s *Store) readIndirect(b common.Bnum) ([]common.Bnum, error) {
	buf := make([]byte, common.BlockSize)
	if err := s.d.ReadBlock(uint64(b), buf); err != nil {
		return nil, err
	}
	dec := marshal.NewDec(buf)
	var blks []common.Bnum
	for i := uint64(0); i < common.IndirectSlots; i++ {
		v := dec.GetInt32()
		if v == 0 {
			break
		}
		blks = append(blks, common.Bnum(v))
	}
	return blks, nil
}

func (s *Store) writeIndirect(b common.Bnum, blks []common.Bnum) error {
	enc := marshal.NewEnc(common.BlockSize)
	for _, bn := range blks {
		enc.PutInt32(uint32(bn))
	}
	// unfilled slots stay zero, terminating enumeration
	return s.d.WriteBlock(uint64(b), enc.Finish())
}

// allocIndirect reserves one data-region block for pointer storage and
// zeroes it so stale slot values cannot leak into enumeration.
func (s *Store) allocIndirect() (common.Bnum, error) {
	bit, err := s.dataBm.Allocate()
	if err != nil {
		return 0, fserr.New(fserr.NoFreeBlocks, "no free blocks for indirect storage")
	}
	b := common.Bnum(s.layout.DataStart + bit)
	if err := s.writeIndirect(b, nil); err != nil {
		s.dataBm.Free(bit)
		return 0, err
	}
	return b, nil
}

// DataBlocks returns every data block of in, in logical file order:
// direct, then single indirect, then double indirect.
func (s *Store) DataBlocks(in common.Inum) ([]common.Bnum, error) {
	ip, err := s.ReadInode(in)
	if err != nil {
		return nil, err
	}
	return s.dataBlocksOf(ip)
}

func (s *Store) dataBlocksOf(ip *Inode) ([]common.Bnum, error) {
	var blks []common.Bnum
	for _, b := range ip.Direct {
		if b != 0 {
			blks = append(blks, b)
		}
	}
	if !ptrUnset(ip.Indirect) {
		more, err := s.readIndirect(common.Bnum(ip.Indirect))
		if err != nil {
			return nil, err
		}
		blks = append(blks, more...)
	}
	if !ptrUnset(ip.DoubleIndirect) {
		slots, err := s.readIndirect(common.Bnum(ip.DoubleIndirect))
		if err != nil {
			return nil, err
		}
		for _, slot := range slots {
			more, err := s.readIndirect(slot)
			if err != nil {
				return nil, err
			}
			blks = append(blks, more...)
		}
	}
	return blks, nil
}

// AllocDataBlocks reserves count fresh data blocks for in and lays the
// inode's whole block list (existing plus new) back out across the
// direct, indirect, and double-indirect tiers, allocating pointer
// blocks as needed. The data bitmap is persisted on success; any
// failure rolls back every bit taken by this call.
func (s *Store) AllocDataBlocks(in common.Inum, count uint64) ([]common.Bnum, error) {
	if count == 0 {
		return nil, nil
	}
	var taken []common.Bnum
	rollback := func() {
		for _, b := range taken {
			s.freeDataBlock(b)
		}
	}

	var fresh []common.Bnum
	for i := uint64(0); i < count; i++ {
		bit, err := s.dataBm.Allocate()
		if err != nil {
			rollback()
			return nil, fserr.Newf(fserr.NoFreeBlocks, "failed to allocate %d data blocks", count)
		}
		b := common.Bnum(s.layout.DataStart + bit)
		fresh = append(fresh, b)
		taken = append(taken, b)
	}

	ip, err := s.ReadInode(in)
	if err != nil {
		rollback()
		return nil, err
	}
	existing, err := s.dataBlocksOf(ip)
	if err != nil {
		rollback()
		return nil, err
	}
	all := append(existing, fresh...)
	if uint64(len(all)) > common.MaxFileBlocks {
		rollback()
		return nil, fserr.Newf(fserr.DiskFull, "file would exceed %d blocks", common.MaxFileBlocks)
	}

	// Direct tier.
	ip.Direct = [common.DirectBlocks]common.Bnum{}
	n := util.Min(uint64(len(all)), common.DirectBlocks)
	for i := uint64(0); i < n; i++ {
		ip.Direct[i] = all[i]
	}
	rest := all[n:]

	// Single-indirect tier.
	if len(rest) > 0 {
		if ptrUnset(ip.Indirect) {
			ib, err := s.allocIndirect()
			if err != nil {
				rollback()
				return nil, err
			}
			taken = append(taken, ib)
			ip.Indirect = int32(ib)
		}
		n := util.Min(uint64(len(rest)), common.IndirectSlots)
		if err := s.writeIndirect(common.Bnum(ip.Indirect), rest[:n]); err != nil {
			rollback()
			return nil, err
		}
		rest = rest[n:]
	}

	// Double-indirect tier.
	if len(rest) > 0 {
		var slots []common.Bnum
		if ptrUnset(ip.DoubleIndirect) {
			db, err := s.allocIndirect()
			if err != nil {
				rollback()
				return nil, err
			}
			taken = append(taken, db)
			ip.DoubleIndirect = int32(db)
		} else {
			slots, err = s.readIndirect(common.Bnum(ip.DoubleIndirect))
			if err != nil {
				rollback()
				return nil, err
			}
		}
		for chunk := 0; len(rest) > 0; chunk++ {
			if chunk >= len(slots) {
				ib, err := s.allocIndirect()
				if err != nil {
					rollback()
					return nil, err
				}
				taken = append(taken, ib)
				slots = append(slots, ib)
			}
			n := util.Min(uint64(len(rest)), common.IndirectSlots)
			if err := s.writeIndirect(slots[chunk], rest[:n]); err != nil {
				rollback()
				return nil, err
			}
			rest = rest[n:]
		}
		if err := s.writeIndirect(common.Bnum(ip.DoubleIndirect), slots); err != nil {
			rollback()
			return nil, err
		}
	}

	ip.Mtime = time.Now().Unix()
	if err := s.WriteInode(in, ip); err != nil {
		rollback()
		return nil, err
	}
	if err := s.saveDataBitmap(); err != nil {
		rollback()
		return nil, err
	}
	return fresh, nil
}
