package builtin

import (
	"fmt"
	"os"
	"path/filepath"

	shell "github.com/kodegen/shellcore"
)

// Mkdir creates each operand as a directory, always recursively (as if
// "-p" were given). An absolute operand always targets the real disk; a
// relative one goes through the shell's configured filesystem.
func Mkdir(c shell.BuiltinContext) shell.Result {
	code := uint8(0)
	for _, arg := range c.Args[1:] {
		if arg == "-p" {
			continue
		}
		var err error
		if filepath.IsAbs(arg) {
			err = os.MkdirAll(arg, 0777)
		} else {
			err = c.Sh.Filesystem().MkdirAll(arg, 0777)
		}
		if err != nil {
			fmt.Fprintf(c.Stderr(), "mkdir: %s: %v\n", arg, err)
			code = 1
		}
	}
	return shell.NormalResult(code)
}
