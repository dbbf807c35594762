// fserr is the filesystem's closed error taxonomy. Every failure the
// engine reports carries one Kind; callers branch on kinds, not on
// message text.
package fserr

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Kind classifies a failure.
type Kind int

const (
	InvalidPath Kind = iota + 1
	NotFound
	AlreadyExists
	NotADirectory
	IsADirectory
	DirectoryNotEmpty
	NoFreeInodes
	NoFreeBlocks
	DiskFull
	InvalidBlock
	InvalidInode
	InvalidDescriptor
	NotOpen
	AlreadyOpen
	InvalidArgument
	IOError
	NotMounted
	AlreadyMounted
	MountFailed
	FormatFailed
	UnmountFailed
	OutOfMemory
	UnknownCommand
	InvalidSyntax
	PermissionDenied
	BufferOverflow
)

var kindNames = map[Kind]string{
	InvalidPath:       "invalid path",
	NotFound:          "not found",
	AlreadyExists:     "already exists",
	NotADirectory:     "not a directory",
	IsADirectory:      "is a directory",
	DirectoryNotEmpty: "directory not empty",
	NoFreeInodes:      "no free inodes",
	NoFreeBlocks:      "no free blocks",
	DiskFull:          "disk full",
	InvalidBlock:      "invalid block",
	InvalidInode:      "invalid inode",
	InvalidDescriptor: "invalid descriptor",
	NotOpen:           "not open",
	AlreadyOpen:       "already open",
	InvalidArgument:   "invalid argument",
	IOError:           "io error",
	NotMounted:        "not mounted",
	AlreadyMounted:    "already mounted",
	MountFailed:       "mount failed",
	FormatFailed:      "format failed",
	UnmountFailed:     "unmount failed",
	OutOfMemory:       "out of memory",
	UnknownCommand:    "unknown command",
	InvalidSyntax:     "invalid syntax",
	PermissionDenied:  "permission denied",
	BufferOverflow:    "buffer overflow",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure with a Kind, a one-line description, and an
// optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New reports a failure: one line on standard error, then the typed
// error for the caller. Failures are never silently swallowed, and
// never logged twice; construct with New/Newf/Wrap exactly where the
// failure is classified.
func New(k Kind, msg string) error {
	e := &Error{Kind: k, Msg: msg}
	logrus.Error(e.Error())
	return e
}

func Newf(k Kind, format string, args ...interface{}) error {
	return New(k, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(k Kind, err error, msg string) error {
	e := &Error{Kind: k, Msg: msg, Err: err}
	logrus.Error(e.Error())
	return e
}

// Pass re-raises err unchanged if it already carries a kind, and wraps
// it as k otherwise. Used on propagation paths so the original
// classification survives.
func Pass(k Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return Wrap(k, err, msg)
}

// KindOf extracts the kind of err, or 0 if err carries none.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
