// pathname holds the pure string helpers for image paths. Paths are
// absolute or root-relative; components are raw bytes. "." and ".."
// are ordinary components here — they resolve through directory lookup,
// never lexically.
package pathname

import (
	"strings"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/fserr"
)

// Normalize folds backslashes to slashes, collapses slash runs, and
// strips a trailing slash except for the root itself.
func Normalize(path string) string {
	if path == "" {
		return ""
	}
	p := strings.ReplaceAll(path, `\`, "/")
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	p = b.String()
	if len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

// Validate rejects empty paths, over-long paths, and paths containing
// NUL, newline, or carriage return.
func Validate(path string) error {
	if path == "" || len(path) > common.MaxPathLen {
		return fserr.Newf(fserr.InvalidPath, "invalid path: %q", path)
	}
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case 0, '\n', '\r':
			return fserr.Newf(fserr.InvalidPath, "invalid path: %q", path)
		}
	}
	return nil
}

// Split breaks a path into its components, discarding empties. A path
// without a leading slash is treated as root-relative.
func Split(path string) []string {
	var components []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	return components
}

func rooted(path string) string {
	if path == "" || path[0] != '/' {
		return "/" + path
	}
	return path
}

// Parent returns the directory part of path; the root is its own
// parent.
func Parent(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	p := rooted(path)
	idx := strings.LastIndexByte(p, '/')
	if idx == 0 {
		return "/"
	}
	return p[:idx]
}

// Base returns the final component of path; the root has none.
func Base(path string) string {
	if path == "/" || path == "" {
		return ""
	}
	p := rooted(path)
	idx := strings.LastIndexByte(p, '/')
	return p[idx+1:]
}
