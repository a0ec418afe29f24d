package builtin

import (
	"fmt"
	"os"
	"path/filepath"

	shell "github.com/kodegen/shellcore"
)

// Rm removes each operand, recursively. An absolute operand always targets
// the real disk; a relative one goes through the shell's configured
// filesystem.
func Rm(c shell.BuiltinContext) shell.Result {
	code := uint8(0)
	for _, arg := range c.Args[1:] {
		if arg == "-r" {
			continue
		}
		var err error
		if filepath.IsAbs(arg) {
			err = os.RemoveAll(arg)
		} else {
			err = c.Sh.Filesystem().RemoveAll(arg)
		}
		if err != nil {
			fmt.Fprintf(c.Stderr(), "rm: %s: %v\n", arg, err)
			code = 1
		}
	}
	return shell.NormalResult(code)
}
