package builtin

import (
	"fmt"
	"os"
	"path/filepath"

	shell "github.com/kodegen/shellcore"
)

// Ls lists the names in a directory (default: the shell's working
// directory), one per line. An absolute operand always reads the real
// disk; a relative one goes through the shell's configured filesystem.
func Ls(c shell.BuiltinContext) shell.Result {
	dir := "."
	if len(c.Args) > 1 {
		dir = c.Args[1]
	}
	if filepath.IsAbs(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			fmt.Fprintf(c.Stderr(), "ls: %s: %v\n", dir, err)
			return shell.NormalResult(1)
		}
		for _, entry := range entries {
			fmt.Fprintln(c.Stdout(), entry.Name())
		}
		return shell.NormalResult(0)
	}
	entries, err := c.Sh.Filesystem().ReadDir(dir)
	if err != nil {
		fmt.Fprintf(c.Stderr(), "ls: %s: %v\n", dir, err)
		return shell.NormalResult(1)
	}
	for _, entry := range entries {
		fmt.Fprintln(c.Stdout(), entry.Name())
	}
	return shell.NormalResult(0)
}
