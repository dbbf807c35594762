// shell implements the interactive command loop and the command
// handlers shared by the one-shot and multithreaded entry points.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/fs"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/pathname"
	"github.com/mindfs/mindfs/stress"
)

type Shell struct {
	fs      *fs.Filesystem
	in      io.Reader
	out     io.Writer
	running bool
}

func New(fsys *fs.Filesystem) *Shell {
	return &Shell{fs: fsys, in: os.Stdin, out: os.Stdout}
}

// NewWithIO overrides the shell's streams, for tests.
func NewWithIO(fsys *fs.Filesystem, in io.Reader, out io.Writer) *Shell {
	return &Shell{fs: fsys, in: in, out: out}
}

// Run is the interactive loop: prompt, read, parse, execute, until
// exit/quit or end of input.
func (s *Shell) Run() {
	if !s.fs.IsMounted() {
		fserr.New(fserr.NotMounted, "file system not mounted")
		return
	}
	s.running = true
	fmt.Fprintln(s.out, "Disk Simulation System")
	fmt.Fprintln(s.out, "Type 'help' for available commands")
	scanner := bufio.NewScanner(s.in)
	for s.running {
		fmt.Fprint(s.out, "disk-sim> ")
		if !scanner.Scan() {
			break
		}
		if cmd, ok := Parse(scanner.Text()); ok {
			s.Execute(cmd)
		}
	}
}

// ExecuteLine parses and runs one command line, returning an exit
// status: 0 on success, 1 on any failure. This is the dispatcher's
// runner.
func (s *Shell) ExecuteLine(line string) int {
	cmd, ok := Parse(line)
	if !ok {
		return 1
	}
	if s.Execute(cmd) {
		return 0
	}
	return 1
}

// Execute runs one parsed command.
func (s *Shell) Execute(cmd Command) bool {
	switch cmd.Name {
	case "help":
		fmt.Fprint(s.out, helpText)
		return true
	case "exit", "quit":
		s.running = false
		fmt.Fprintln(s.out, "Goodbye!")
		return true
	case "info":
		return s.cmdInfo()
	case "format":
		return s.cmdFormat()
	case "ls":
		return s.cmdLs(cmd.Args)
	case "mkdir":
		return s.cmdMkdir(cmd.Args)
	case "touch":
		return s.cmdTouch(cmd.Args)
	case "rm":
		return s.cmdRm(cmd.Args)
	case "cat":
		return s.cmdCat(cmd.Args)
	case "echo":
		return s.cmdEcho(cmd.Args)
	case "copy", "cp":
		return s.cmdCopy(cmd.Args)
	case "stress":
		return s.cmdStress(cmd.Args)
	default:
		fserr.Newf(fserr.UnknownCommand, "unknown command: %s", cmd.Name)
		return false
	}
}

func requireArgs(args []string, n int, usage string) bool {
	if len(args) < n {
		fserr.New(fserr.InvalidSyntax, "usage: "+usage)
		return false
	}
	return true
}

func (s *Shell) cmdInfo() bool {
	info, err := s.fs.DiskInfo()
	if err != nil {
		return false
	}
	fmt.Fprint(s.out, info)
	return true
}

func (s *Shell) cmdFormat() bool {
	if err := s.fs.Format(); err != nil {
		return false
	}
	fmt.Fprintln(s.out, "Disk formatted successfully")
	return true
}

func (s *Shell) cmdLs(args []string) bool {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	entries, err := s.fs.ListDirectory(pathname.Normalize(path))
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name
		if name == "." || name == ".." {
			name += "/"
		}
		fmt.Fprintf(s.out, "%s\t", name)
	}
	fmt.Fprintln(s.out)
	return true
}

func (s *Shell) cmdMkdir(args []string) bool {
	if !requireArgs(args, 1, "mkdir <path>") {
		return false
	}
	path := pathname.Normalize(args[0])
	if err := s.fs.CreateDirectory(path); err != nil {
		return false
	}
	fmt.Fprintf(s.out, "Directory created: %s\n", path)
	return true
}

func (s *Shell) cmdTouch(args []string) bool {
	if !requireArgs(args, 1, "touch <path>") {
		return false
	}
	path := pathname.Normalize(args[0])
	if _, err := s.fs.CreateFile(path, common.PermRead|common.PermWrite); err != nil {
		return false
	}
	fmt.Fprintf(s.out, "File created: %s\n", path)
	return true
}

func (s *Shell) cmdRm(args []string) bool {
	if !requireArgs(args, 1, "rm <path>") {
		return false
	}
	path := pathname.Normalize(args[0])
	if err := s.fs.DeleteFile(path); err != nil {
		if err := s.fs.RemoveDirectory(path); err != nil {
			return false
		}
	}
	fmt.Fprintf(s.out, "Removed: %s\n", path)
	return true
}

func (s *Shell) cmdCat(args []string) bool {
	if !requireArgs(args, 1, "cat <path>") {
		return false
	}
	path := pathname.Normalize(args[0])
	if !s.fs.FileExists(path) {
		fserr.Newf(fserr.NotFound, "file not found: %s", path)
		return false
	}
	fd, err := s.fs.OpenFile(path, common.OpenRead)
	if err != nil {
		return false
	}
	defer s.fs.CloseFile(fd)
	buf := make([]byte, 1024)
	for {
		n, err := s.fs.ReadFile(fd, buf)
		if err != nil {
			return false
		}
		if n == 0 {
			break
		}
		s.out.Write(buf[:n])
	}
	fmt.Fprintln(s.out)
	return true
}

// cmdEcho handles the form: echo <text...> > <path>
func (s *Shell) cmdEcho(args []string) bool {
	sep := -1
	for i, a := range args {
		if a == ">" {
			sep = i
		}
	}
	if sep < 0 || sep != len(args)-2 {
		fserr.New(fserr.InvalidSyntax, "usage: echo <text...> > <path>")
		return false
	}
	path := pathname.Normalize(args[len(args)-1])
	text := ""
	for i := 0; i < sep; i++ {
		if i > 0 {
			text += " "
		}
		text += args[i]
	}
	fd, err := s.fs.OpenFile(path, common.OpenWrite|common.OpenCreate)
	if err != nil {
		return false
	}
	n, err := s.fs.WriteFile(fd, []byte(text))
	s.fs.CloseFile(fd)
	if err != nil || n != len(text) {
		fserr.Newf(fserr.IOError, "failed to write to file: %s", path)
		return false
	}
	fmt.Fprintf(s.out, "Written to file: %s\n", path)
	return true
}

func (s *Shell) cmdCopy(args []string) bool {
	if len(args) != 2 {
		fserr.New(fserr.InvalidArgument, "copy requires exactly two arguments: source and destination")
		return false
	}
	src := pathname.Normalize(args[0])
	dst := pathname.Normalize(args[1])
	if !s.fs.FileExists(src) {
		fserr.Newf(fserr.NotFound, "source file not found: %s", src)
		return false
	}
	srcFd, err := s.fs.OpenFile(src, common.OpenRead)
	if err != nil {
		return false
	}
	var content []byte
	buf := make([]byte, common.BlockSize)
	for {
		n, err := s.fs.ReadFile(srcFd, buf)
		if err != nil {
			s.fs.CloseFile(srcFd)
			return false
		}
		if n == 0 {
			break
		}
		content = append(content, buf[:n]...)
	}
	s.fs.CloseFile(srcFd)

	dstFd, err := s.fs.OpenFile(dst, common.OpenWrite|common.OpenCreate)
	if err != nil {
		return false
	}
	n, err := s.fs.WriteFile(dstFd, content)
	s.fs.CloseFile(dstFd)
	if err != nil || n != len(content) {
		fserr.Newf(fserr.IOError, "failed to write to destination file: %s", dst)
		return false
	}
	fmt.Fprintf(s.out, "File copied from %s to %s\n", src, dst)
	return true
}

func (s *Shell) cmdStress(args []string) bool {
	cfg, err := stress.ParseArgs(args)
	if err != nil {
		return false
	}
	if err := stress.Run(s.fs, cfg); err != nil {
		logrus.Error("[Stress] Test finished with errors")
		return false
	}
	fmt.Fprintln(s.out, "[Stress] Test finished successfully")
	return true
}
