// bitmap is a fixed-size bit vector with an O(1) free counter. Bit k of
// the inode bitmap is inode k; bit k of the data bitmap is image block
// data_start + k. All operations take the internal mutex, which is a
// leaf lock: it is never held across image I/O.
package bitmap

import (
	"errors"
	"math/bits"
	"sync"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/fserr"
)

// ErrNoFree is returned by Allocate when every bit is set. Callers map
// it to the resource-specific kind (no-free-inodes / no-free-blocks).
var ErrNoFree = errors.New("bitmap: no free bits")

type Bitmap struct {
	mu    sync.Mutex
	bits  []byte
	total uint64
	free  uint64
}

func New(total uint64) *Bitmap {
	return &Bitmap{
		bits:  make([]byte, (total+7)/8),
		total: total,
		free:  total,
	}
}

// Allocate finds the lowest clear bit, sets it, and returns its index.
func (bm *Bitmap) Allocate() (uint64, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.free == 0 {
		return 0, ErrNoFree
	}
	for i, b := range bm.bits {
		if b == 0xff {
			continue
		}
		bit := uint64(bits.TrailingZeros8(^b))
		n := uint64(i)*8 + bit
		if n >= bm.total {
			break
		}
		bm.bits[i] |= 1 << bit
		bm.free--
		return n, nil
	}
	return 0, ErrNoFree
}

// Free clears bit n. Freeing an already-clear bit is a silent no-op;
// an out-of-range index is an error.
func (bm *Bitmap) Free(n uint64) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if n >= bm.total {
		return fserr.Newf(fserr.InvalidArgument, "bit %d out of range (total %d)", n, bm.total)
	}
	mask := byte(1) << (n % 8)
	if bm.bits[n/8]&mask != 0 {
		bm.bits[n/8] &^= mask
		bm.free++
	}
	return nil
}

func (bm *Bitmap) IsSet(n uint64) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if n >= bm.total {
		return false
	}
	return bm.bits[n/8]&(1<<(n%8)) != 0
}

func (bm *Bitmap) Total() uint64 {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.total
}

func (bm *Bitmap) NumFree() uint64 {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.free
}

func (bm *Bitmap) Used() uint64 {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.total - bm.free
}

// Clear zeroes every bit.
func (bm *Bitmap) Clear() {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	for i := range bm.bits {
		bm.bits[i] = 0
	}
	bm.free = bm.total
}

// blockDevice is the part of the image device persistence needs.
type blockDevice interface {
	ReadBlock(blkno uint64, buf []byte) error
	WriteBlock(blkno uint64, buf []byte) error
}

// LoadFrom streams the bit vector out of nblocks consecutive blocks and
// recomputes the free counter by population count, so an inconsistent
// on-image counter cannot survive a load.
func (bm *Bitmap) LoadFrom(d blockDevice, start uint64, nblocks uint64) error {
	buf := make([]byte, common.BlockSize)
	bm.mu.Lock()
	dst := bm.bits
	bm.mu.Unlock()
	// The byte copy happens outside the bitmap mutex: the device mutex
	// serializes the transfers, and callers hold the facade lock.
	off := 0
	for i := uint64(0); i < nblocks && off < len(dst); i++ {
		if err := d.ReadBlock(start+i, buf); err != nil {
			return err
		}
		off += copy(dst[off:], buf)
	}
	bm.mu.Lock()
	defer bm.mu.Unlock()
	used := uint64(0)
	for _, b := range bm.bits {
		used += uint64(bits.OnesCount8(b))
	}
	bm.free = bm.total - used
	return nil
}

// SaveTo streams the bit vector into nblocks consecutive blocks,
// zero-padding the tail of the last block.
func (bm *Bitmap) SaveTo(d blockDevice, start uint64, nblocks uint64) error {
	bm.mu.Lock()
	src := make([]byte, len(bm.bits))
	copy(src, bm.bits)
	bm.mu.Unlock()
	buf := make([]byte, common.BlockSize)
	off := 0
	for i := uint64(0); i < nblocks; i++ {
		for j := range buf {
			buf[j] = 0
		}
		if off < len(src) {
			off += copy(buf, src[off:])
		}
		if err := d.WriteBlock(start+i, buf); err != nil {
			return err
		}
	}
	return nil
}
