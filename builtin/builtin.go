// Package builtin implements the shell's built-in commands. Each function
// has the signature shell.BuiltinFunc so it can be registered with a
// shell.Builder via WithBuiltin/WithBuiltins: standalone command
// functions, grouped into files by concern, each taking a BuiltinContext
// and returning a Result.
package builtin

import (
	"fmt"
	"strings"

	shell "github.com/kodegen/shellcore"
)

// Default returns the full table of regular (non-special) builtins this
// package implements.
func Default() map[string]shell.BuiltinFunc {
	return map[string]shell.BuiltinFunc{
		"pwd":     Pwd,
		"cd":      Cd,
		"pushd":   Pushd,
		"popd":    Popd,
		"dirs":    Dirs,
		"test":    Test,
		"[":       Test,
		"times":   Times,
		"suspend": Suspend,
		"echo":    Echo,
		"printf":  Printf,
		"true":    True,
		"false":   False,
		"builtin": Builtin,
		"cat":     Cat,
		"date":    Date,
		"ls":      Ls,
		"mkdir":   Mkdir,
		"rm":      Rm,
		"sleep":   Sleep,
	}
}

// Special returns the table of POSIX special builtins: they're resolved
// before functions. An assignment preceding one is undone when the command
// returns, as for any other command.
func Special() map[string]shell.BuiltinFunc {
	return map[string]shell.BuiltinFunc{
		":":        Colon,
		"export":   Export,
		"readonly": Readonly,
		"local":    Local,
		"unset":    Unset,
		"let":      Let,
		"exit":     Exit,
		"return":   Return,
		"break":    Break,
		"continue": Continue,
		"eval":     Eval,
		"set":      Set,
		"shift":    Shift,
	}
}

// True always succeeds.
func True(c shell.BuiltinContext) shell.Result { return shell.NormalResult(0) }

// False always fails.
func False(c shell.BuiltinContext) shell.Result { return shell.NormalResult(1) }

// Colon is the POSIX no-op builtin; its operands are expanded (by the
// engine's word expansion before Colon ever runs) but otherwise ignored.
func Colon(c shell.BuiltinContext) shell.Result { return shell.NormalResult(0) }

// Echo writes its operands to stdout, space-separated, honoring "-n" to
// suppress the trailing newline and "-e" to interpret backslash escapes.
func Echo(c shell.BuiltinContext) shell.Result {
	args := c.Args[1:]
	newline := true
	escapes := false
	for len(args) > 0 {
		switch args[0] {
		case "-n":
			newline = false
		case "-e":
			escapes = true
		case "-E":
			escapes = false
		default:
			goto done
		}
		args = args[1:]
	}
done:
	out := strings.Join(args, " ")
	if escapes {
		out = interpretEscapes(out)
	}
	if newline {
		out += "\n"
	}
	fmt.Fprint(c.Stdout(), out)
	return shell.NormalResult(0)
}

func interpretEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Printf is a minimal printf(1): %s/%d/%% conversions against the
// remaining arguments, cycling the format string if there are more
// arguments than conversions, as POSIX printf does.
func Printf(c shell.BuiltinContext) shell.Result {
	if len(c.Args) < 2 {
		return shell.NormalResult(shell.ExitInvalidUsage)
	}
	format := c.Args[1]
	operands := c.Args[2:]
	for {
		consumed := writeOnePrintfPass(c, format, operands)
		if consumed >= len(operands) {
			break
		}
		operands = operands[consumed:]
		if consumed == 0 {
			break
		}
	}
	return shell.NormalResult(0)
}

func writeOnePrintfPass(c shell.BuiltinContext, format string, operands []string) int {
	out := c.Stdout()
	used := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			fmt.Fprintf(out, "%c", format[i])
			continue
		}
		i++
		switch format[i] {
		case '%':
			fmt.Fprint(out, "%")
		case 's':
			if used < len(operands) {
				fmt.Fprint(out, operands[used])
				used++
			}
		case 'd':
			if used < len(operands) {
				fmt.Fprint(out, operands[used])
				used++
			}
		case '\\':
			if i+1 < len(format) && format[i+1] == 'n' {
				fmt.Fprint(out, "\n")
				i++
			}
		default:
			fmt.Fprintf(out, "%%%c", format[i])
		}
	}
	return used
}

// Builtin implements the "builtin" builtin: run name as a builtin even if
// a function of the same name is registered, bypassing normal resolution
// order, bypassing normal function/builtin precedence.
func Builtin(c shell.BuiltinContext) shell.Result {
	if len(c.Args) < 2 {
		return shell.NormalResult(shell.ExitInvalidUsage)
	}
	fn, _, ok := c.Sh.Builtin(c.Args[1])
	if !ok {
		fmt.Fprintf(c.Stderr(), "builtin: %s: not a shell builtin\n", c.Args[1])
		return shell.NormalResult(1)
	}
	return fn(shell.BuiltinContext{Ctx: c.Ctx, Sh: c.Sh, Params: c.Params, Args: c.Args[1:]})
}
