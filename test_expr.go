package shell

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"mvdan.cc/sh/v3/pattern"
	"mvdan.cc/sh/v3/syntax"
)

// testExpr evaluates a "[[ ... ]]" test expression, returning a 0/1 exit code the way bash's [[ does. Binary
// and unary operator tokens are matched by their printed form rather than
// by enumerating every syntax package constant name, since TestExpr's
// operator types all implement fmt.Stringer over their shell spelling.
func (sh *Shell) testExpr(ctx context.Context, p Params, expr syntax.TestExpr) (uint8, error) {
	ok, err := sh.evalTest(ctx, p, expr)
	if err != nil {
		return 2, err
	}
	return boolCode(ok), nil
}

func (sh *Shell) evalTest(ctx context.Context, p Params, expr syntax.TestExpr) (bool, error) {
	switch e := expr.(type) {
	case *syntax.Word:
		s, err := sh.literal(ctx, p, e)
		if err != nil {
			return false, err
		}
		return s != "", nil

	case *syntax.ParenTest:
		return sh.evalTest(ctx, p, e.X)

	case *syntax.UnaryTest:
		return sh.evalUnaryTest(ctx, p, e)

	case *syntax.BinaryTest:
		return sh.evalBinaryTest(ctx, p, e)

	default:
		return false, fmt.Errorf("shell: unhandled test expression %T", expr)
	}
}

func (sh *Shell) evalUnaryTest(ctx context.Context, p Params, e *syntax.UnaryTest) (bool, error) {
	op := e.Op.String()
	if op == "!" {
		inner, err := sh.evalTest(ctx, p, e.X)
		return !inner, err
	}

	word, ok := e.X.(*syntax.Word)
	if !ok {
		return false, fmt.Errorf("shell: unary test operand must be a word")
	}
	s, err := sh.literal(ctx, p, word)
	if err != nil {
		return false, err
	}

	switch op {
	case "-z":
		return s == "", nil
	case "-n":
		return s != "", nil
	case "-e":
		_, err := os.Stat(sh.resolvePath(s))
		return err == nil, nil
	case "-f":
		info, err := os.Stat(sh.resolvePath(s))
		return err == nil && info.Mode().IsRegular(), nil
	case "-d":
		info, err := os.Stat(sh.resolvePath(s))
		return err == nil && info.IsDir(), nil
	case "-L", "-h":
		info, err := os.Lstat(sh.resolvePath(s))
		return err == nil && info.Mode()&os.ModeSymlink != 0, nil
	case "-r":
		return sh.accessible(s, 0o4), nil
	case "-w":
		return sh.accessible(s, 0o2), nil
	case "-x":
		return sh.accessible(s, 0o1), nil
	case "-s":
		info, err := os.Stat(sh.resolvePath(s))
		return err == nil && info.Size() > 0, nil
	case "-v":
		_, found := sh.Env.Get(s)
		return found, nil
	case "-o":
		if _, _, ok := sh.Opts.ByName(s); ok {
			get, _, _ := sh.Opts.ByName(s)
			return get(), nil
		}
		return false, nil
	default:
		return false, fmt.Errorf("shell: unsupported unary test operator %q", op)
	}
}

func (sh *Shell) accessible(path string, bit os.FileMode) bool {
	info, err := os.Stat(sh.resolvePath(path))
	if err != nil {
		return false
	}
	return info.Mode().Perm()&bit != 0
}

func (sh *Shell) evalBinaryTest(ctx context.Context, p Params, e *syntax.BinaryTest) (bool, error) {
	op := e.Op.String()

	if op == "&&" || op == "-a" {
		l, err := sh.evalTest(ctx, p, e.X)
		if err != nil || !l {
			return false, err
		}
		return sh.evalTest(ctx, p, e.Y)
	}
	if op == "||" || op == "-o" {
		l, err := sh.evalTest(ctx, p, e.X)
		if err != nil || l {
			return l, err
		}
		return sh.evalTest(ctx, p, e.Y)
	}

	lw, lok := e.X.(*syntax.Word)
	rw, rok := e.Y.(*syntax.Word)
	if !lok || !rok {
		return false, fmt.Errorf("shell: binary test operands must be words")
	}
	l, err := sh.literal(ctx, p, lw)
	if err != nil {
		return false, err
	}
	r, err := sh.literal(ctx, p, rw)
	if err != nil {
		return false, err
	}

	switch op {
	case "==", "=":
		return matchOrEqual(l, r), nil
	case "!=":
		return !matchOrEqual(l, r), nil
	case "<":
		return l < r, nil
	case ">":
		return l > r, nil
	case "-eq", "-ne", "-lt", "-gt", "-le", "-ge":
		ln, lerr := strconv.Atoi(l)
		rn, rerr := strconv.Atoi(r)
		if lerr != nil || rerr != nil {
			return false, fmt.Errorf("shell: non-numeric operand in arithmetic test")
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
		li, lerr := os.Stat(sh.resolvePath(l))
		ri, rerr := os.Stat(sh.resolvePath(r))
		return lerr == nil && rerr == nil && li.ModTime().After(ri.ModTime()), nil
	case "-ot":
		li, lerr := os.Stat(sh.resolvePath(l))
		ri, rerr := os.Stat(sh.resolvePath(r))
		return lerr == nil && rerr == nil && li.ModTime().Before(ri.ModTime()), nil
	case "-ef":
		li, lerr := os.Stat(sh.resolvePath(l))
		ri, rerr := os.Stat(sh.resolvePath(r))
		return lerr == nil && rerr == nil && os.SameFile(li, ri), nil
	}
	return false, fmt.Errorf("shell: unsupported binary test operator %q", op)
}

func matchOrEqual(s, pat string) bool {
	if s == pat {
		return true
	}
	ok, err := matchGlobPattern(pat, s)
	return err == nil && ok
}
