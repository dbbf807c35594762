package fs

import (
	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/dir"
	"github.com/mindfs/mindfs/fserr"
)

// ensureRoot reconciles inode 0 on mount and after format: allocated,
// a directory with rwx permissions and link count >= 2, owning at least
// one data block, with "." and ".." both naming inode 0. Missing or
// wrong pieces are repaired in place.
func (f *Filesystem) ensureRoot() error {
	const rootMode = common.ModeDir | common.PermRead | common.PermWrite | common.PermExec

	if !f.store.IsAllocated(common.RootInum) {
		in, err := f.store.AllocInode()
		if err != nil {
			return err
		}
		if in != common.RootInum {
			return fserr.Newf(fserr.InvalidInode, "unexpected root inode index: %d", in)
		}
	}

	ip, err := f.store.ReadInode(common.RootInum)
	if err != nil {
		return err
	}
	dirty := false
	if !ip.IsDir() {
		ip.Mode = rootMode
		ip.LinkCount = 2
		dirty = true
	} else {
		const perms = common.PermRead | common.PermWrite | common.PermExec
		if ip.Mode&perms != perms {
			ip.Mode |= perms
			dirty = true
		}
		if ip.LinkCount < 2 {
			ip.LinkCount = 2
			dirty = true
		}
	}
	if dirty {
		if err := f.store.WriteInode(common.RootInum, ip); err != nil {
			return err
		}
	}

	entries, err := f.dirs.Read(common.RootInum)
	needsWrite := err != nil
	if err != nil {
		entries = nil
	}

	hasDot, hasDotDot := false, false
	for i := range entries {
		switch entries[i].Name {
		case ".":
			hasDot = true
			if entries[i].Inum != common.RootInum {
				entries[i].Inum = common.RootInum
				needsWrite = true
			}
		case "..":
			hasDotDot = true
			if entries[i].Inum != common.RootInum {
				entries[i].Inum = common.RootInum
				needsWrite = true
			}
		}
	}
	if !hasDot || !hasDotDot {
		var fixed []dir.Entry
		if !hasDot {
			fixed = append(fixed, dir.Entry{Inum: common.RootInum, Name: "."})
		}
		if !hasDotDot {
			fixed = append(fixed, dir.Entry{Inum: common.RootInum, Name: ".."})
		}
		entries = append(fixed, entries...)
		needsWrite = true
	}
	if !needsWrite {
		return nil
	}

	blks, err := f.store.DataBlocks(common.RootInum)
	if err != nil {
		return err
	}
	if len(blks) == 0 {
		if _, err := f.store.AllocDataBlocks(common.RootInum, 1); err != nil {
			return err
		}
	}
	return f.dirs.Write(common.RootInum, entries)
}
