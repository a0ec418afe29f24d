package builtin

import (
	"fmt"
	"os"

	shell "github.com/kodegen/shellcore"
	"golang.org/x/sys/unix"
)

// Suspend stops the shell process with SIGSTOP, refusing on a login shell
// unless "-f" forces it, matching the reference implementation's
// suspend builtin.
func Suspend(c shell.BuiltinContext) shell.Result {
	force := false
	for _, a := range c.Args[1:] {
		if a == "-f" {
			force = true
		}
	}
	if c.Sh.Opts.Login && !force {
		fmt.Fprintln(c.Stderr(), "suspend: login shell cannot be suspended")
		return shell.NormalResult(shell.ExitInvalidUsage)
	}
	if err := unix.Kill(os.Getpid(), unix.SIGSTOP); err != nil {
		fmt.Fprintf(c.Stderr(), "suspend: %v\n", err)
		return shell.NormalResult(1)
	}
	return shell.NormalResult(0)
}
