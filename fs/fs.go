// fs is the filesystem facade: the only externally visible surface.
// Every operation takes the facade's reader-writer lock (shared for
// read-only queries, exclusive for everything else) and requires a
// mounted image.
package fs

import (
	"sync"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/dir"
	"github.com/mindfs/mindfs/disk"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/inode"
)

type openFile struct {
	inum common.Inum
	mode int
	pos  int64
}

type Filesystem struct {
	mu      sync.RWMutex
	dev     *disk.Device
	store   *inode.Store
	dirs    *dir.Dir
	layout  disk.Layout
	sb      *disk.Superblock
	mounted bool
	fds     map[int]*openFile
	nextFd  int
}

func New() *Filesystem {
	dev := disk.NewDevice()
	store := inode.NewStore(dev)
	return &Filesystem{
		dev:    dev,
		store:  store,
		dirs:   dir.New(dev, store),
		fds:    make(map[int]*openFile),
		nextFd: common.FdStart,
	}
}

func (f *Filesystem) ensureMounted(op string) error {
	if f.mounted {
		return nil
	}
	return fserr.New(fserr.NotMounted, op+" requires a mounted file system")
}

// Mount binds an image: open and lock the host file, validate the
// superblock, load the bitmaps, and reconcile the root directory. A
// failed mount closes the image before returning.
func (f *Filesystem) Mount(imagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mounted {
		return fserr.New(fserr.AlreadyMounted, "file system already mounted")
	}
	if err := f.dev.Open(imagePath); err != nil {
		return fserr.Pass(fserr.MountFailed, err, "cannot open image")
	}
	if err := f.initAfterOpen(); err != nil {
		f.dev.Close()
		return err
	}
	f.mounted = true
	return nil
}

func (f *Filesystem) initAfterOpen() error {
	if err := f.loadSuperblock(); err != nil {
		return err
	}
	if err := f.store.Init(f.layout); err != nil {
		return err
	}
	return f.ensureRoot()
}

func (f *Filesystem) loadSuperblock() error {
	sb, err := f.dev.ReadSuperblock()
	if err != nil {
		return err
	}
	f.sb = sb
	f.layout = disk.ComputeLayout(f.dev.TotalBlocks())
	return nil
}

// Unmount closes every open descriptor and releases the image.
func (f *Filesystem) Unmount() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("unmount"); err != nil {
		return err
	}
	for fd := range f.fds {
		f.closeLocked(fd)
	}
	if err := f.dev.Close(); err != nil {
		return fserr.Pass(fserr.UnmountFailed, err, "failed to close image")
	}
	f.mounted = false
	return nil
}

// Format rewrites the layout of the mounted image and reinstalls the
// root directory.
func (f *Filesystem) Format() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("format"); err != nil {
		return err
	}
	if err := f.dev.Format(); err != nil {
		return err
	}
	if err := f.loadSuperblock(); err != nil {
		return err
	}
	if err := f.store.ReloadBitmaps(); err != nil {
		return fserr.Pass(fserr.FormatFailed, err, "failed to reload bitmaps after format")
	}
	if err := f.ensureRoot(); err != nil {
		return fserr.Pass(fserr.FormatFailed, err, "failed to initialize root directory after format")
	}
	return nil
}

func (f *Filesystem) IsMounted() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mounted
}
