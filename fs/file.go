package fs

import (
	"time"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/pathname"
	"github.com/mindfs/mindfs/util"
)

// CreateFile allocates an inode for a new regular file and links it
// into its parent directory. It returns the new inode id.
func (f *Filesystem) CreateFile(path string, perms uint32) (common.Inum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("create_file"); err != nil {
		return 0, err
	}
	return f.createFileLocked(pathname.Normalize(path), perms)
}

func (f *Filesystem) createFileLocked(path string, perms uint32) (common.Inum, error) {
	if _, ok, err := f.resolve(path); err != nil {
		return 0, err
	} else if ok {
		return 0, fserr.Newf(fserr.AlreadyExists, "file already exists: %s", path)
	}
	parentIn, name, err := f.splitTarget(path)
	if err != nil {
		return 0, err
	}
	in, err := f.store.AllocInode()
	if err != nil {
		return 0, err
	}
	ip, err := f.store.ReadInode(in)
	if err != nil {
		f.store.FreeInode(in)
		return 0, err
	}
	ip.Mode = common.ModeRegular | perms
	if err := f.store.WriteInode(in, ip); err != nil {
		f.store.FreeInode(in)
		return 0, err
	}
	if err := f.dirs.AddEntry(parentIn, name, in); err != nil {
		f.store.FreeInode(in)
		return 0, err
	}
	return in, nil
}

// DeleteFile unlinks a regular file and frees its inode and blocks.
// Directories are refused; use RemoveDirectory.
func (f *Filesystem) DeleteFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("delete_file"); err != nil {
		return err
	}
	p := pathname.Normalize(path)
	in, ok, err := f.resolve(p)
	if err != nil {
		return err
	}
	if !ok {
		return errNotFound(p)
	}
	ip, err := f.store.ReadInode(in)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		return fserr.Newf(fserr.IsADirectory, "path is a directory: %s", p)
	}
	parentIn, name, err := f.splitTarget(p)
	if err != nil {
		return err
	}
	if err := f.dirs.RemoveEntry(parentIn, name); err != nil {
		return err
	}
	return f.store.FreeInode(in)
}

// FileExists reports whether path resolves.
func (f *Filesystem) FileExists(path string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.mounted {
		return false
	}
	_, ok, err := f.resolve(pathname.Normalize(path))
	return err == nil && ok
}

// OpenFile opens path with the given mode flags and returns a
// descriptor. WRITE|CREATE creates a missing file with default rw
// permissions; APPEND starts the position at the current size.
func (f *Filesystem) OpenFile(path string, mode int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("open_file"); err != nil {
		return -1, err
	}
	p := pathname.Normalize(path)
	in, ok, err := f.resolve(p)
	if err != nil {
		return -1, err
	}
	if !ok {
		if mode&common.OpenCreate == 0 {
			return -1, errNotFound(p)
		}
		in, err = f.createFileLocked(p, common.PermRead|common.PermWrite)
		if err != nil {
			return -1, err
		}
	}
	fd, err := f.allocFd()
	if err != nil {
		return -1, err
	}
	entry := &openFile{inum: in, mode: mode}
	if mode&common.OpenAppend != 0 {
		ip, err := f.store.ReadInode(in)
		if err != nil {
			return -1, err
		}
		entry.pos = ip.Size
	}
	f.fds[fd] = entry
	f.touchAtime(in)
	return fd, nil
}

// allocFd walks a rolling cursor from 3 upward, skipping live ids and
// wrapping past 1024.
func (f *Filesystem) allocFd() (int, error) {
	if len(f.fds) >= common.FdMax-common.FdStart+1 {
		return -1, fserr.New(fserr.InvalidDescriptor, "no available file descriptors")
	}
	for {
		if _, live := f.fds[f.nextFd]; !live {
			break
		}
		f.nextFd++
		if f.nextFd > common.FdMax {
			f.nextFd = common.FdStart
		}
	}
	fd := f.nextFd
	f.nextFd++
	if f.nextFd > common.FdMax {
		f.nextFd = common.FdStart
	}
	return fd, nil
}

func (f *Filesystem) getFd(fd int) (*openFile, error) {
	entry, ok := f.fds[fd]
	if !ok {
		return nil, fserr.Newf(fserr.InvalidDescriptor, "file descriptor not open: %d", fd)
	}
	return entry, nil
}

// CloseFile touches the modification time and drops the descriptor.
// The device auto-flushes on write, so close performs no sync.
func (f *Filesystem) CloseFile(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("close_file"); err != nil {
		return err
	}
	return f.closeLocked(fd)
}

func (f *Filesystem) closeLocked(fd int) error {
	entry, err := f.getFd(fd)
	if err != nil {
		return err
	}
	f.touchMtime(entry.inum)
	delete(f.fds, fd)
	return nil
}

// ReadFile copies up to len(buf) bytes from the descriptor's position
// and advances it. Returns 0 at end of file.
func (f *Filesystem) ReadFile(fd int, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("read_file"); err != nil {
		return -1, err
	}
	entry, err := f.getFd(fd)
	if err != nil {
		return -1, err
	}
	if entry.mode&common.OpenRead == 0 {
		return -1, fserr.Newf(fserr.InvalidArgument, "file not opened for reading: fd=%d", fd)
	}
	ip, err := f.store.ReadInode(entry.inum)
	if err != nil {
		return -1, err
	}
	if entry.pos >= ip.Size {
		return 0, nil
	}
	n := util.Min64(int64(len(buf)), ip.Size-entry.pos)
	blks, err := f.store.DataBlocks(entry.inum)
	if err != nil {
		return -1, err
	}
	if err := readFromBlocks(f.dev, blks, entry.pos, buf[:n]); err != nil {
		return -1, err
	}
	entry.pos += n
	f.touchAtime(entry.inum)
	return int(n), nil
}

// WriteFile copies buf at the descriptor's position, extending the file
// with freshly allocated blocks as needed, and advances the position.
func (f *Filesystem) WriteFile(fd int, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("write_file"); err != nil {
		return -1, err
	}
	entry, err := f.getFd(fd)
	if err != nil {
		return -1, err
	}
	if entry.mode&common.OpenWrite == 0 {
		return -1, fserr.Newf(fserr.InvalidArgument, "file not opened for writing: fd=%d", fd)
	}
	ip, err := f.store.ReadInode(entry.inum)
	if err != nil {
		return -1, err
	}
	size := int64(len(buf))
	current := util.RoundUp(uint64(ip.Size), common.BlockSize)
	required := util.RoundUp(uint64(entry.pos+size), common.BlockSize)
	if required > current {
		if _, err := f.store.AllocDataBlocks(entry.inum, required-current); err != nil {
			return -1, err
		}
		// allocation rewrote the inode's pointer graph
		ip, err = f.store.ReadInode(entry.inum)
		if err != nil {
			return -1, err
		}
	}
	blks, err := f.store.DataBlocks(entry.inum)
	if err != nil {
		return -1, err
	}
	if err := writeToBlocks(f.dev, blks, entry.pos, buf); err != nil {
		return -1, err
	}
	ip.Size = util.Max64(ip.Size, entry.pos+size)
	ip.Mtime = time.Now().Unix()
	if err := f.store.WriteInode(entry.inum, ip); err != nil {
		return -1, err
	}
	entry.pos += size
	return int(size), nil
}

// SeekFile moves the descriptor's position to pos, which must lie in
// [0, size].
func (f *Filesystem) SeekFile(fd int, pos int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("seek_file"); err != nil {
		return err
	}
	entry, err := f.getFd(fd)
	if err != nil {
		return err
	}
	ip, err := f.store.ReadInode(entry.inum)
	if err != nil {
		return err
	}
	if pos < 0 || pos > ip.Size {
		return fserr.Newf(fserr.InvalidArgument, "invalid seek position: %d", pos)
	}
	entry.pos = pos
	return nil
}

func (f *Filesystem) touchAtime(in common.Inum) {
	if ip, err := f.store.ReadInode(in); err == nil {
		ip.Atime = time.Now().Unix()
		f.store.WriteInode(in, ip)
	}
}

func (f *Filesystem) touchMtime(in common.Inum) {
	if ip, err := f.store.ReadInode(in); err == nil {
		ip.Mtime = time.Now().Unix()
		f.store.WriteInode(in, ip)
	}
}
