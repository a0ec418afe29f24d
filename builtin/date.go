package builtin

import (
	"io"
	"time"

	shell "github.com/kodegen/shellcore"
)

// Date prints the current time in UTC, ignoring format operands.
func Date(c shell.BuiltinContext) shell.Result {
	io.WriteString(c.Stdout(), time.Now().UTC().Format(time.UnixDate)+"\n")
	return shell.NormalResult(0)
}
