package builtin

import (
	"fmt"
	"sort"
	"strings"

	shell "github.com/kodegen/shellcore"
)

// Export implements the "export" builtin over already-expanded string
// operands. Most "export NAME=value" invocations are actually parsed as a
// DeclClause AST node and handled directly by the engine; this
// form exists for the "builtin export ..." escape hatch and for hosts that
// dispatch operand strings directly rather than through the parser.
func Export(c shell.BuiltinContext) shell.Result {
	return declLike(c, true, false, false)
}

// Readonly implements the "readonly" builtin, same caveat as Export.
func Readonly(c shell.BuiltinContext) shell.Result {
	return declLike(c, false, true, false)
}

// Local implements the "local" builtin, same caveat as Export.
func Local(c shell.BuiltinContext) shell.Result {
	return declLike(c, false, false, true)
}

func declLike(c shell.BuiltinContext, exported, readonly, local bool) shell.Result {
	env := c.Sh.Variables()
	args := c.Args[1:]
	if len(args) == 0 {
		var names []string
		env.Iter(func(name string, v *shell.Variable) bool {
			if (exported && v.Exported) || (readonly && v.ReadOnly) || (!exported && !readonly) {
				names = append(names, name)
			}
			return true
		})
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(c.Stdout(), "%s=%s\n", n, v(env, n))
		}
		return shell.NormalResult(0)
	}
	scope := shell.WriteGlobal
	if local {
		scope = shell.WriteLocal
	}
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		name, val, hasVal := strings.Cut(a, "=")
		value := shell.ScalarValue(val)
		if !hasVal {
			if existing, ok := env.Get(name); ok {
				value = shell.Value{Kind: existing.Kind, Str: existing.Str, List: existing.List, Map: existing.Map}
			} else {
				value = shell.ScalarValue("")
			}
		}
		_, err := env.UpdateOrAdd(name, value, func(vr *shell.Variable) {
			if exported {
				vr.Exported = true
			}
			if readonly {
				vr.ReadOnly = true
			}
		}, shell.LookupAnywhere, scope)
		if err != nil {
			fmt.Fprintf(c.Stderr(), "%s: %v\n", c.Args[0], err)
			return shell.NormalResult(1)
		}
	}
	return shell.NormalResult(0)
}

func v(env *shell.Environ, name string) string {
	vr, ok := env.Get(name)
	if !ok {
		return ""
	}
	return vr.String()
}

// Unset removes a variable (default, or with "-v") or a function ("-f").
func Unset(c shell.BuiltinContext) shell.Result {
	wantFunc := false
	var names []string
	for _, a := range c.Args[1:] {
		switch a {
		case "-f":
			wantFunc = true
		case "-v":
			wantFunc = false
		default:
			names = append(names, a)
		}
	}
	for _, n := range names {
		if wantFunc {
			c.Sh.Funcs.Remove(n)
			continue
		}
		c.Sh.Variables().Unset(n, shell.LookupAnywhere)
	}
	return shell.NormalResult(0)
}

// Let evaluates its operands as arithmetic expressions (concatenated with
// spaces would be ambiguous, so each operand is evaluated independently),
// exiting false only if the last expression evaluates to zero, matching
// bash's "let".
func Let(c shell.BuiltinContext) shell.Result {
	if len(c.Args) < 2 {
		return shell.NormalResult(shell.ExitInvalidUsage)
	}
	var last int64
	for _, expr := range c.Args[1:] {
		n, err := c.Sh.EvalArithm(c.Ctx, c.Params, expr)
		if err != nil {
			fmt.Fprintf(c.Stderr(), "let: %v\n", err)
			return shell.NormalResult(1)
		}
		last = n
	}
	if last == 0 {
		return shell.NormalResult(1)
	}
	return shell.NormalResult(0)
}

// Eval parses and runs its operands (joined by a space) as a shell command
// in the current shell (not a subshell), as the "eval" special
// builtin.
func Eval(c shell.BuiltinContext) shell.Result {
	src := strings.Join(c.Args[1:], " ")
	res, err := c.Sh.RunString(c.Ctx, src, c.Params)
	if err != nil {
		fmt.Fprintf(c.Stderr(), "eval: %v\n", err)
		return shell.NormalResult(1)
	}
	return res
}

// Set implements the subset of "set" that toggles shell options by letter
// flag ("-e", "+x", ...) or replaces the positional parameters.
func Set(c shell.BuiltinContext) shell.Result {
	args := c.Args[1:]
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			i++
			break
		}
		if len(a) < 2 || (a[0] != '-' && a[0] != '+') {
			break
		}
		enable := a[0] == '-'
		for _, flag := range a[1:] {
			if _, set, ok := c.Sh.Opts.ByFlag(byte(flag)); ok {
				set(enable)
			}
		}
	}
	if i < len(args) {
		c.Sh.Positional = append([]string(nil), args[i:]...)
	}
	return shell.NormalResult(0)
}

// Shift drops the first N positional parameters (default 1).
func Shift(c shell.BuiltinContext) shell.Result {
	n := 1
	if len(c.Args) > 1 {
		fmt.Sscanf(c.Args[1], "%d", &n)
	}
	if n < 0 || n > len(c.Sh.Positional) {
		return shell.NormalResult(1)
	}
	c.Sh.Positional = c.Sh.Positional[n:]
	return shell.NormalResult(0)
}
