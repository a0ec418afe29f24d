package builtin

import (
	"fmt"
	"strconv"
	"time"

	shell "github.com/kodegen/shellcore"
)

// Sleep pauses for each operand's duration in turn, returning early with
// exit code 130 if the call's cancellation token fires mid-sleep.
func Sleep(c shell.BuiltinContext) shell.Result {
	for _, arg := range c.Args[1:] {
		d, err := time.ParseDuration(arg)
		if err != nil {
			i, err := strconv.ParseInt(arg, 0, 0)
			if err != nil {
				fmt.Fprintf(c.Stderr(), "sleep: invalid time interval %q\n", arg)
				return shell.NormalResult(shell.ExitInvalidUsage)
			}
			d = time.Duration(i) * time.Second
		}
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-c.Ctx.Done():
			timer.Stop()
			return shell.NormalResult(130)
		case <-c.Params.Cancel.Done():
			timer.Stop()
			return shell.NormalResult(130)
		}
	}
	return shell.NormalResult(0)
}
