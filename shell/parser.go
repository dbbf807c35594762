package shell

import "strings"

// Command is one parsed line: a name and its arguments.
type Command struct {
	Name string
	Args []string
}

// Parse splits a line on whitespace. It returns false for blank lines.
func Parse(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: fields[0], Args: fields[1:]}, true
}

const helpText = `Available commands:
  help                     - show this help
  exit | quit              - leave the shell
  info                     - show disk information
  format                   - format the mounted image
  ls [path]                - list a directory (default /)
  mkdir <path>             - create a directory
  touch <path>             - create an empty file
  rm <path>                - remove a file or empty directory
  cat <path>               - print a file
  echo <text...> > <path>  - write text to a file
  copy <src> <dst>         - copy a file (alias: cp)
  stress [options]         - run the storage stress test
`
