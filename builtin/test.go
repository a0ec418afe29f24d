package builtin

import (
	"os"
	"path/filepath"
	"strconv"

	shell "github.com/kodegen/shellcore"
)

// Test implements the "test"/"[" builtin: POSIX test(1) over already
// word-expanded string operands (as opposed to shell.Shell's testExpr,
// which evaluates the parsed "[[ ... ]]" AST form directly).
func Test(c shell.BuiltinContext) shell.Result {
	args := c.Args[1:]
	if c.Args[0] == "[" {
		if len(args) == 0 || args[len(args)-1] != "]" {
			return shell.NormalResult(shell.ExitInvalidUsage)
		}
		args = args[:len(args)-1]
	}
	ok, err := evalTestArgs(c.Sh, args)
	if err != nil {
		return shell.NormalResult(2)
	}
	if ok {
		return shell.NormalResult(0)
	}
	return shell.NormalResult(1)
}

func evalTestArgs(sh *shell.Shell, args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		if args[0] == "!" {
			v, err := evalTestArgs(sh, args[1:])
			return !v, err
		}
		return evalUnary(sh, args[0], args[1])
	case 3:
		if args[0] == "!" {
			v, err := evalTestArgs(sh, args[1:])
			return !v, err
		}
		return evalBinary(sh, args[0], args[1], args[2])
	case 4:
		if args[0] == "!" {
			v, err := evalTestArgs(sh, args[1:])
			return !v, err
		}
	}
	// Longer expressions (-a/-o chains) associate left to right, the way
	// POSIX test(1) leaves them underspecified but bash accepts.
	l, err := evalBinary(sh, args[0], args[1], args[2])
	if err != nil {
		return false, err
	}
	switch args[3] {
	case "-a":
		if !l {
			return false, nil
		}
		return evalTestArgs(sh, args[4:])
	case "-o":
		if l {
			return true, nil
		}
		return evalTestArgs(sh, args[4:])
	}
	return false, nil
}

func evalUnary(sh *shell.Shell, op, operand string) (bool, error) {
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(sh.WorkingDir(), p)
	}
	switch op {
	case "-z":
		return operand == "", nil
	case "-n":
		return operand != "", nil
	case "-e":
		_, err := os.Stat(resolve(operand))
		return err == nil, nil
	case "-f":
		info, err := os.Stat(resolve(operand))
		return err == nil && info.Mode().IsRegular(), nil
	case "-d":
		info, err := os.Stat(resolve(operand))
		return err == nil && info.IsDir(), nil
	case "-L", "-h":
		info, err := os.Lstat(resolve(operand))
		return err == nil && info.Mode()&os.ModeSymlink != 0, nil
	case "-s":
		info, err := os.Stat(resolve(operand))
		return err == nil && info.Size() > 0, nil
	case "-r":
		return accessible(resolve(operand), 0o4), nil
	case "-w":
		return accessible(resolve(operand), 0o2), nil
	case "-x":
		return accessible(resolve(operand), 0o1), nil
	case "-v":
		_, ok := sh.Variables().Get(operand)
		return ok, nil
	default:
		return false, nil
	}
}

func accessible(path string, bit os.FileMode) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&bit != 0
}

func evalBinary(sh *shell.Shell, l, op, r string) (bool, error) {
	switch op {
	case "=", "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "-eq", "-ne", "-lt", "-gt", "-le", "-ge":
		ln, err1 := strconv.Atoi(l)
		rn, err2 := strconv.Atoi(r)
		if err1 != nil || err2 != nil {
			return false, err1
		}
		switch op {
		case "-eq":
			return ln == rn, nil
		case "-ne":
			return ln != rn, nil
		case "-lt":
			return ln < rn, nil
		case "-gt":
			return ln > rn, nil
		case "-le":
			return ln <= rn, nil
		case "-ge":
			return ln >= rn, nil
		}
	case "-nt":
		li, lerr := os.Stat(l)
		ri, rerr := os.Stat(r)
		return lerr == nil && rerr == nil && li.ModTime().After(ri.ModTime()), nil
	case "-ot":
		li, lerr := os.Stat(l)
		ri, rerr := os.Stat(r)
		return lerr == nil && rerr == nil && li.ModTime().Before(ri.ModTime()), nil
	case "-ef":
		li, lerr := os.Stat(l)
		ri, rerr := os.Stat(r)
		return lerr == nil && rerr == nil && os.SameFile(li, ri), nil
	}
	return false, nil
}
