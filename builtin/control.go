package builtin

import (
	"strconv"

	shell "github.com/kodegen/shellcore"
)

func atoiOr(s string, fallback uint8) uint8 {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return uint8(n)
}

// Exit unwinds the entire execution call with the given code (default: the
// shell's last exit code), via shell.DispExit.
func Exit(c shell.BuiltinContext) shell.Result {
	code := c.Sh.LastExitCode
	if len(c.Args) > 1 {
		code = atoiOr(c.Args[1], code)
	}
	return shell.Result{Code: code, Disposition: shell.DispExit}
}

// Return unwinds to the nearest enclosing function call, via
// shell.DispReturn. Outside a function it behaves like Exit, since
// invoke() converts DispReturn back to DispNormal at the function
// boundary but there is no boundary to catch it at the top level.
func Return(c shell.BuiltinContext) shell.Result {
	code := c.Sh.LastExitCode
	if len(c.Args) > 1 {
		code = atoiOr(c.Args[1], code)
	}
	return shell.Result{Code: code, Disposition: shell.DispReturn}
}

// Break unwinds N enclosing loops (default 1).
func Break(c shell.BuiltinContext) shell.Result {
	n := 1
	if len(c.Args) > 1 {
		n = int(atoiOr(c.Args[1], 1))
	}
	if n < 1 {
		n = 1
	}
	return shell.Result{Code: 0, Disposition: shell.DispBreak, N: n}
}

// Continue restarts the Nth enclosing loop (default 1, the innermost).
func Continue(c shell.BuiltinContext) shell.Result {
	n := 1
	if len(c.Args) > 1 {
		n = int(atoiOr(c.Args[1], 1))
	}
	if n < 1 {
		n = 1
	}
	return shell.Result{Code: 0, Disposition: shell.DispContinue, N: n}
}
