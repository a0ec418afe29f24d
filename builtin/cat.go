package builtin

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	shell "github.com/kodegen/shellcore"
)

// open resolves a path against the shell's configured filesystem: absolute
// paths always escape to the real disk (a sandboxed fs.FileSystem has no
// notion of host-absolute paths), relative ones go through c.Sh.Filesystem()
// so a host running a sandboxed or in-memory shell sees them too.
func open(c shell.BuiltinContext, path string) (fs.File, error) {
	if filepath.IsAbs(path) {
		return os.Open(path)
	}
	return c.Sh.Filesystem().Open(path)
}

// Cat streams its operands to stdout, or copies stdin through unchanged
// if given none.
func Cat(c shell.BuiltinContext) shell.Result {
	args := c.Args[1:]
	if len(args) == 0 {
		io.Copy(c.Stdout(), c.Stdin())
		return shell.NormalResult(0)
	}
	code := uint8(0)
	for _, arg := range args {
		f, err := open(c, arg)
		if err != nil {
			fmt.Fprintf(c.Stderr(), "cat: %s: %v\n", arg, err)
			code = 1
			continue
		}
		fi, err := f.Stat()
		if err != nil {
			fmt.Fprintf(c.Stderr(), "cat: %s: %v\n", arg, err)
			f.Close()
			code = 1
			continue
		}
		if fi.IsDir() {
			fmt.Fprintf(c.Stderr(), "cat: %s: is a directory\n", arg)
			f.Close()
			code = 1
			continue
		}
		_, err = io.Copy(c.Stdout(), f)
		f.Close()
		if err != nil {
			fmt.Fprintf(c.Stderr(), "cat: %s: %v\n", arg, err)
			code = 1
		}
	}
	return shell.NormalResult(code)
}
