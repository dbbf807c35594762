package fs

import "github.com/mindfs/mindfs/fserr"

func errInvalidName(path string) error {
	return fserr.Newf(fserr.InvalidPath, "invalid file name in path: %s", path)
}

func errParentNotFound(parent string) error {
	return fserr.Newf(fserr.NotFound, "parent directory not found: %s", parent)
}

func errNotFound(path string) error {
	return fserr.Newf(fserr.NotFound, "file not found: %s", path)
}
