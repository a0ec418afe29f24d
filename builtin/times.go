package builtin

import (
	"fmt"

	"golang.org/x/sys/unix"

	shell "github.com/kodegen/shellcore"
)

// Times prints accumulated process CPU time: the shell's own user/system
// time, then its reaped children's, one pair per line, matching the
// reference implementation's two-line "times" output.
func Times(c shell.BuiltinContext) shell.Result {
	var self, children unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &self); err != nil {
		fmt.Fprintf(c.Stderr(), "times: %v\n", err)
		return shell.NormalResult(1)
	}
	if err := unix.Getrusage(unix.RUSAGE_CHILDREN, &children); err != nil {
		fmt.Fprintf(c.Stderr(), "times: %v\n", err)
		return shell.NormalResult(1)
	}
	fmt.Fprintf(c.Stdout(), "%s %s\n", formatRusageDuration(self.Utime), formatRusageDuration(self.Stime))
	fmt.Fprintf(c.Stdout(), "%s %s\n", formatRusageDuration(children.Utime), formatRusageDuration(children.Stime))
	return shell.NormalResult(0)
}

func formatRusageDuration(tv unix.Timeval) string {
	total := float64(tv.Sec) + float64(tv.Usec)/1e6
	minutes := int64(total) / 60
	seconds := total - float64(minutes*60)
	return fmt.Sprintf("%dm%.3fs", minutes, seconds)
}
