package fs

import (
	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/dir"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/pathname"
)

// CreateDirectory makes a new directory with "." and ".." installed
// and links it into its parent.
func (f *Filesystem) CreateDirectory(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("create_directory"); err != nil {
		return err
	}
	p := pathname.Normalize(path)
	if _, ok, err := f.resolve(p); err != nil {
		return err
	} else if ok {
		return fserr.Newf(fserr.AlreadyExists, "directory already exists: %s", p)
	}
	parentIn, name, err := f.splitTarget(p)
	if err != nil {
		return err
	}
	in, err := f.store.AllocInode()
	if err != nil {
		return err
	}
	ip, err := f.store.ReadInode(in)
	if err != nil {
		f.store.FreeInode(in)
		return err
	}
	ip.Mode = common.ModeDir | common.PermRead | common.PermWrite | common.PermExec
	ip.LinkCount = 2 // "." and the parent's entry
	if err := f.store.WriteInode(in, ip); err != nil {
		f.store.FreeInode(in)
		return err
	}
	if _, err := f.store.AllocDataBlocks(in, 1); err != nil {
		f.store.FreeInode(in)
		return err
	}
	if err := f.dirs.Write(in, dir.DotEntries(in, parentIn)); err != nil {
		f.store.FreeInode(in)
		return err
	}
	if err := f.dirs.AddEntry(parentIn, name, in); err != nil {
		f.store.FreeInode(in)
		return err
	}
	return nil
}

// RemoveDirectory deletes an empty directory. The root and non-empty
// directories are refused.
func (f *Filesystem) RemoveDirectory(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureMounted("remove_directory"); err != nil {
		return err
	}
	p := pathname.Normalize(path)
	if p == "/" {
		return fserr.New(fserr.InvalidArgument, "cannot remove root directory")
	}
	in, ok, err := f.resolve(p)
	if err != nil {
		return err
	}
	if !ok {
		return fserr.Newf(fserr.NotFound, "directory not found: %s", p)
	}
	entries, err := f.dirs.Read(in)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name != "." && e.Name != ".." {
			return fserr.Newf(fserr.DirectoryNotEmpty, "directory not empty: %s", p)
		}
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

// ListDirectory returns the live entries of the directory at path.
func (f *Filesystem) ListDirectory(path string) ([]dir.Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.ensureMounted("list_directory"); err != nil {
		return nil, err
	}
	p := pathname.Normalize(path)
	in, ok, err := f.resolve(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fserr.Newf(fserr.NotFound, "directory not found: %s", p)
	}
	return f.dirs.Read(in)
}

// IsDirectory reports whether path resolves to a directory.
func (f *Filesystem) IsDirectory(path string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.mounted {
		return false
	}
	in, ok, err := f.resolve(pathname.Normalize(path))
	if err != nil || !ok {
		return false
	}
	ip, err := f.store.ReadInode(in)
	return err == nil && ip.IsDir()
}

// ParentPath and Basename are pure path utilities exposed for callers.
func (f *Filesystem) ParentPath(path string) string {
	return pathname.Parent(path)
}

func (f *Filesystem) Basename(path string) string {
	return pathname.Base(path)
}
