package fs

import (
	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/pathname"
)

// lookup scans directory dirIn for name. A miss is not an error here;
// callers decide whether absence is a failure.
func (f *Filesystem) lookup(dirIn common.Inum, name string) (common.Inum, bool, error) {
	entries, err := f.dirs.Read(dirIn)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Inum, true, nil
		}
	}
	return 0, false, nil
}

// resolve walks a normalized path from the root, one directory lookup
// per component. "." and ".." resolve through the directory entries
// themselves (the root's ".." self-references). "/" resolves to the
// root without any directory I/O.
func (f *Filesystem) resolve(path string) (common.Inum, bool, error) {
	if path == "/" {
		return common.RootInum, true, nil
	}
	if err := pathname.Validate(path); err != nil {
		return 0, false, err
	}
	cur := common.RootInum
	for _, component := range pathname.Split(path) {
		next, ok, err := f.lookup(cur, component)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, nil
		}
		cur = next
	}
	return cur, true, nil
}

// splitTarget validates path and returns its parent directory inode and
// final component, for create-style operations.
func (f *Filesystem) splitTarget(path string) (common.Inum, string, error) {
	if err := pathname.Validate(path); err != nil {
		return 0, "", err
	}
	name := pathname.Base(path)
	if name == "" || len(name) > common.MaxFilenameLen {
		return 0, "", errInvalidName(path)
	}
	parent := pathname.Parent(path)
	parentIn, ok, err := f.resolve(parent)
	if err != nil {
		return 0, "", err
	}
	if !ok {
		return 0, "", errParentNotFound(parent)
	}
	return parentIn, name, nil
}
