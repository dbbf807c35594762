// disk implements the image device: a single host file accessed at
// block granularity, with an advisory whole-image lock and an internal
// mutex that makes block reads and writes atomic with respect to each
// other.
package disk

import (
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/fserr"
)

const MB = 1024 * 1024

// Device is the block-granularity view of one image file. A Device is
// either bound (open) to an image or unbound; Create leaves it unbound.
type Device struct {
	mu          sync.Mutex // serializes all block transfers
	file        *os.File
	flk         *flock.Flock
	path        string
	sizeBytes   int64
	totalBlocks uint64
	open        bool
}

func NewDevice() *Device {
	return &Device{}
}

// Create makes a new image file of exactly sizeMB megabytes, extended
// sparsely by writing one byte at the final offset. The device stays
// unbound.
func (d *Device) Create(path string, sizeMB int) error {
	if d.open {
		return fserr.New(fserr.AlreadyOpen, "create failed: an image is already open")
	}
	if sizeMB <= 0 {
		return fserr.Newf(fserr.InvalidArgument, "image size must be positive: %d MB", sizeMB)
	}
	f, err := os.Create(path)
	if err != nil {
		return fserr.Wrap(fserr.IOError, err, "failed to create image file: "+path)
	}
	size := int64(sizeMB) * MB
	if _, err := f.WriteAt([]byte{0}, size-1); err != nil {
		f.Close()
		return fserr.Wrap(fserr.IOError, err, "failed to extend image file: "+path)
	}
	if err := f.Close(); err != nil {
		return fserr.Wrap(fserr.IOError, err, "failed to close image file: "+path)
	}
	return nil
}

// Open binds the device to an existing image. It takes an exclusive
// advisory lock on the host file; a second process opening the same
// image fails here.
func (d *Device) Open(path string) error {
	if d.open {
		return fserr.New(fserr.AlreadyOpen, "open failed: an image is already open")
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fserr.Wrap(fserr.IOError, err, "failed to open image file: "+path)
	}
	flk := flock.New(path)
	locked, err := flk.TryLock()
	if err != nil || !locked {
		f.Close()
		if err == nil {
			err = errors.New("lock held by another process")
		}
		return fserr.Wrap(fserr.IOError, err, "failed to lock image file: "+path)
	}
	st, err := f.Stat()
	if err != nil {
		flk.Unlock()
		f.Close()
		return fserr.Wrap(fserr.IOError, err, "failed to stat image file: "+path)
	}
	d.file = f
	d.flk = flk
	d.path = path
	d.sizeBytes = st.Size()
	d.totalBlocks = uint64(st.Size()) / common.BlockSize
	d.open = true
	return nil
}

// Close releases the lock and the host file. Idempotent.
func (d *Device) Close() error {
	if !d.open {
		return nil
	}
	if d.flk != nil {
		d.flk.Unlock()
		d.flk = nil
	}
	err := d.file.Close()
	d.file = nil
	d.open = false
	if err != nil {
		return fserr.Wrap(fserr.IOError, err, "failed to close image file: "+d.path)
	}
	return nil
}

func (d *Device) checkIO(blkno uint64) error {
	if !d.open {
		return fserr.New(fserr.NotOpen, "block I/O failed: image not open")
	}
	if blkno >= d.totalBlocks {
		return fserr.Newf(fserr.InvalidBlock, "invalid block number: %d", blkno)
	}
	return nil
}

// ReadBlock fills buf (exactly one block) from block blkno.
func (d *Device) ReadBlock(blkno uint64, buf []byte) error {
	if uint64(len(buf)) != common.BlockSize {
		return fserr.Newf(fserr.InvalidArgument, "read buffer is not block-sized: %d bytes", len(buf))
	}
	if err := d.checkIO(blkno); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := unix.Pread(int(d.file.Fd()), buf, int64(blkno*common.BlockSize))
	if err != nil || uint64(n) != common.BlockSize {
		if err == nil {
			err = errors.Errorf("short read of %d bytes", n)
		}
		return fserr.Wrap(fserr.IOError, err, "failed to read block")
	}
	return nil
}

// WriteBlock writes buf (exactly one block) to block blkno. The
// transfer goes straight to the host file; there is no user-space
// buffering to flush.
func (d *Device) WriteBlock(blkno uint64, buf []byte) error {
	if uint64(len(buf)) != common.BlockSize {
		return fserr.Newf(fserr.InvalidArgument, "write buffer is not block-sized: %d bytes", len(buf))
	}
	if err := d.checkIO(blkno); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := unix.Pwrite(int(d.file.Fd()), buf, int64(blkno*common.BlockSize))
	if err != nil || uint64(n) != common.BlockSize {
		if err == nil {
			err = errors.Errorf("short write of %d bytes", n)
		}
		return fserr.Wrap(fserr.IOError, err, "failed to write block")
	}
	return nil
}

func (d *Device) IsOpen() bool        { return d.open }
func (d *Device) TotalBlocks() uint64 { return d.totalBlocks }
func (d *Device) SizeBytes() int64    { return d.sizeBytes }
func (d *Device) Path() string        { return d.path }

// zeroBlock is a shared all-zero block; never written to.
var zeroBlock = make([]byte, common.BlockSize)

func (d *Device) writeZeroed(start uint64, nblocks uint64) error {
	for i := uint64(0); i < nblocks; i++ {
		if err := d.WriteBlock(start+i, zeroBlock); err != nil {
			return err
		}
	}
	return nil
}
