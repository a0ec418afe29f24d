package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kodegen/shellcore/proc"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/pattern"
	"mvdan.cc/sh/v3/syntax"
)

// environAdapter exposes a Shell's Environ to mvdan.cc/sh/v3/expand, the
// library that owns field splitting, glob expansion, and arithmetic
//.
type environAdapter struct{ sh *Shell }

var (
	_ expand.Environ      = environAdapter{}
	_ expand.WriteEnviron = environAdapter{}
)

func (e environAdapter) Get(name string) expand.Variable {
	v, ok := e.sh.Env.Get(name)
	if !ok {
		return expand.Variable{}
	}
	return toExpandVar(*v)
}

func (e environAdapter) Set(name string, vr expand.Variable) error {
	_, err := e.sh.Env.UpdateOrAdd(name, fromExpandVar(vr), func(v *Variable) {
		v.Exported = vr.Exported
		v.ReadOnly = vr.ReadOnly
		v.Local = vr.Local
	}, LookupAnywhere, WriteGlobal)
	return err
}

func (e environAdapter) Each(fn func(name string, vr expand.Variable) bool) {
	e.sh.Env.Iter(func(name string, v *Variable) bool {
		return fn(name, toExpandVar(*v))
	})
}

func toExpandVar(v Variable) expand.Variable {
	ev := expand.Variable{
		Local:    v.Local,
		Exported: v.Exported,
		ReadOnly: v.ReadOnly,
		Set:      v.Set,
		Str:      v.Str,
		List:     v.List,
		Map:      v.Map,
	}
	switch v.Kind {
	case KindIndexed:
		ev.Kind = expand.Indexed
	case KindAssociative:
		ev.Kind = expand.Associative
	default:
		ev.Kind = expand.Scalar
	}
	return ev
}

func fromExpandVar(vr expand.Variable) Value {
	val := Value{Str: vr.Str, List: vr.List, Map: vr.Map}
	switch vr.Kind {
	case expand.Indexed:
		val.Kind = KindIndexed
	case expand.Associative:
		val.Kind = KindAssociative
	default:
		val.Kind = KindString
	}
	return val
}

// ecfg builds a fresh expand.Config for one execution call, wiring command
// substitution back into a subshell copy of this Shell so nested scripts
// see the calling shell's variables and builtins. Process substitution and
// pathname globbing are not wired.
func (sh *Shell) ecfg(ctx context.Context, p Params) *expand.Config {
	return &expand.Config{
		Env: environAdapter{sh},
		CmdSubst: func(w io.Writer, cs *syntax.CmdSubst) error {
			sub := sh.subshellCopy()
			subP := p.Clone()
			subP.FDs.Set(FDStdout, &writerFile{w})
			sub.runStmts(ctx, cs.Stmts, subP)
			return nil
		},
		ReadDir2: nil,
		NoUnset:  sh.Opts.NoUnset,
	}
}

func (sh *Shell) fields(ctx context.Context, p Params, words ...*syntax.Word) ([]string, error) {
	return expand.Fields(sh.ecfg(ctx, p), words...)
}

func (sh *Shell) literal(ctx context.Context, p Params, w *syntax.Word) (string, error) {
	return expand.Literal(sh.ecfg(ctx, p), w)
}

func (sh *Shell) patternOf(ctx context.Context, p Params, w *syntax.Word) (string, error) {
	return expand.Pattern(sh.ecfg(ctx, p), w)
}

// EvalArithm evaluates a bare arithmetic expression string (e.g. an
// already word-expanded "let" operand), by parsing it as a "(( ))"
// arithmetic command and running the usual arithm evaluator over its
// AST, so builtins working over plain strings share the same evaluation
// path as the "let"/"((...))" AST forms.
func (sh *Shell) EvalArithm(ctx context.Context, p Params, expr string) (int64, error) {
	file, err := sh.parser.Parse(strings.NewReader("(( "+expr+" ))"), "<let>")
	if err != nil {
		return 0, err
	}
	if len(file.Stmts) != 1 {
		return 0, fmt.Errorf("shell: invalid arithmetic expression %q", expr)
	}
	cmd, ok := file.Stmts[0].Cmd.(*syntax.ArithmCmd)
	if !ok {
		return 0, fmt.Errorf("shell: invalid arithmetic expression %q", expr)
	}
	n, err := sh.arithm(ctx, p, cmd.X)
	return int64(n), err
}

func (sh *Shell) arithm(ctx context.Context, p Params, expr syntax.ArithmExpr) (int, error) {
	return expand.Arithm(sh.ecfg(ctx, p), expr)
}

// subshellCopy returns a Shell sharing this one's builtins, jobs, and
// traps but with an independent variable scope stack and function
// registry, so that mutations inside "( ... )" never escape to the
// parent.
func (sh *Shell) subshellCopy() *Shell {
	c := *sh
	c.Env = sh.Env.cloneForSubshell()
	c.Funcs = sh.Funcs.Clone()
	c.dirs = NewDirStack(sh.Dir)
	c.hashCache = make(map[string]string, len(sh.hashCache))
	for k, v := range sh.hashCache {
		c.hashCache[k] = v
	}
	return &c
}

// cloneForSubshell deep-copies every scope so writes in the copy never
// touch the original's variables.
func (e *Environ) cloneForSubshell() *Environ {
	c := &Environ{scopes: make([]*varScope, len(e.scopes))}
	for i, s := range e.scopes {
		ns := newVarScope()
		for name, v := range s.vars {
			cp := *v
			ns.vars[name] = &cp
		}
		c.scopes[i] = ns
	}
	return c
}

// runStmts executes a statement list in sequence, honoring errexit and
// stopping early on break/continue/return/exit dispositions or
// cancellation.
func (sh *Shell) runStmts(ctx context.Context, stmts []*syntax.Stmt, p Params) Result {
	res := NormalResult(0)
	for _, st := range stmts {
		if p.Cancel.Cancelled() {
			return Result{Code: res.Code, Disposition: DispExit, Err: ctx.Err()}
		}
		res = sh.stmt(ctx, st, p)
		sh.LastExitCode = res.Code
		if res.Disposition != DispNormal {
			return res
		}
	}
	return res
}

func (sh *Shell) stmt(ctx context.Context, st *syntax.Stmt, p Params) Result {
	if st.Background {
		go sh.runBackground(st, p)
		return NormalResult(0)
	}

	local := p
	var opened []OpenFile
	if len(st.Redirs) > 0 {
		local.FDs = p.FDs.Clone()
		for _, rd := range st.Redirs {
			f, err := sh.applyRedirect(ctx, rd, &local)
			if err != nil {
				return Result{Code: 1, Err: err}
			}
			if f != nil {
				opened = append(opened, f)
			}
		}
	}
	res := sh.cmd(ctx, st.Cmd, local)
	for _, f := range opened {
		f.Close()
	}
	if st.Negated {
		if res.Code == 0 {
			res.Code = 1
		} else {
			res.Code = 0
		}
	}
	if sh.Opts.ErrExit && res.Code != 0 && res.Disposition == DispNormal && !st.Negated {
		res.Disposition = DispExit
	}
	return res
}

// runBackground spawns a detached job for "cmd &", tracked in the job
// table so "jobs"/"wait" can observe it scheduling model.
func (sh *Shell) runBackground(st *syntax.Stmt, p Params) {
	bg := sh.subshellCopy()
	bgP := p.Clone()
	id := sh.jobs.Add(0, syntax.String(st))
	ctx := context.Background()
	fg := *st
	fg.Background = false
	res := bg.stmt(ctx, &fg, bgP)
	sh.jobs.Update(id, func(j *Job) {
		j.State = JobDone
		j.Exit = int(res.Code)
	})
}

// applyRedirect mutates local.FDs per rd, returning a handle the caller
// should Close once the statement completes (if one was opened).
func (sh *Shell) applyRedirect(ctx context.Context, rd *syntax.Redirect, local *Params) (OpenFile, error) {
	fd := FDStdout
	if rd.N != nil {
		n, err := strconv.Atoi(rd.N.Value)
		if err == nil {
			fd = n
		}
	}

	if rd.Hdoc != nil {
		body, err := sh.document(ctx, *local, rd.Hdoc)
		if err != nil {
			return nil, err
		}
		buf := NewMemBuffer(body)
		local.FDs.Set(FDStdin, buf)
		return nil, nil
	}

	arg, err := sh.literal(ctx, *local, rd.Word)
	if err != nil {
		return nil, err
	}

	switch rd.Op {
	case syntax.DplOut:
		if arg == "-" {
			local.FDs.Close(fd)
			return nil, nil
		}
		from, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid fd %q", arg)
		}
		local.FDs.Dup(from, fd)
		return nil, nil
	case syntax.DplIn:
		if arg == "-" {
			local.FDs.Close(FDStdin)
			return nil, nil
		}
		from, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid fd %q", arg)
		}
		local.FDs.Dup(from, FDStdin)
		return nil, nil
	case syntax.WordHdoc:
		buf := NewMemBuffer(arg + "\n")
		local.FDs.Set(FDStdin, buf)
		return nil, nil
	}

	path := sh.resolvePath(arg)
	var flags int
	switch rd.Op {
	case syntax.RdrIn:
		flags = os.O_RDONLY
	case syntax.RdrOut, syntax.RdrAll:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if sh.Opts.Noclobber {
			flags |= os.O_EXCL
		}
	case syntax.AppOut, syntax.AppAll:
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case syntax.RdrInOut:
		flags = os.O_RDWR | os.O_CREATE
	default:
		return nil, fmt.Errorf("unsupported redirection operator %v", rd.Op)
	}

	osFile, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	handle := NewOSFile(osFile)
	switch rd.Op {
	case syntax.RdrIn, syntax.RdrInOut:
		local.FDs.Set(FDStdin, handle)
	case syntax.RdrAll, syntax.AppAll:
		local.FDs.Set(FDStdout, handle)
		local.FDs.Set(FDStderr, handle)
	default:
		local.FDs.Set(fd, handle)
	}
	return handle, nil
}

func (sh *Shell) document(ctx context.Context, p Params, w *syntax.Word) (string, error) {
	return expand.Document(sh.ecfg(ctx, p), w)
}

func (sh *Shell) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(sh.Dir, p)
}

// cmd dispatches one AST command node, the counterpart of the upstream
// interpreter's runner.go "cmd" switch, adapted to return a Result rather
// than mutate shared exit-status state.
func (sh *Shell) cmd(ctx context.Context, cm syntax.Command, p Params) Result {
	switch c := cm.(type) {
	case *syntax.Block:
		return sh.runStmts(ctx, c.Stmts, p)

	case *syntax.Subshell:
		sub := sh.subshellCopy()
		res := sub.runStmts(ctx, c.Stmts, p)
		if res.Disposition == DispExit {
			res.Disposition = DispNormal
		}
		return res

	case *syntax.CallExpr:
		return sh.callExpr(ctx, c, p)

	case *syntax.BinaryCmd:
		return sh.binaryCmd(ctx, c, p)

	case *syntax.IfClause:
		return sh.ifClause(ctx, c, p)

	case *syntax.WhileClause:
		return sh.whileClause(ctx, c, p)

	case *syntax.ForClause:
		return sh.forClause(ctx, c, p)

	case *syntax.FuncDecl:
		sh.Funcs.Register(c.Name.Value, c.Body)
		return NormalResult(0)

	case *syntax.ArithmCmd:
		n, err := sh.arithm(ctx, p, c.X)
		if err != nil {
			return Result{Code: 1, Err: err}
		}
		return NormalResult(boolCode(n != 0))

	case *syntax.LetClause:
		var n int
		var err error
		for _, expr := range c.Exprs {
			n, err = sh.arithm(ctx, p, expr)
			if err != nil {
				return Result{Code: 1, Err: err}
			}
		}
		return NormalResult(boolCode(n != 0))

	case *syntax.CaseClause:
		return sh.caseClause(ctx, c, p)

	case *syntax.TestClause:
		code, err := sh.testExpr(ctx, p, c.X)
		if err != nil {
			return Result{Code: 2, Err: err}
		}
		return NormalResult(code)

	case *syntax.DeclClause:
		return sh.declClause(ctx, c, p)

	case *syntax.TimeClause:
		start := time.Now()
		res := NormalResult(0)
		if c.Stmt != nil {
			res = sh.stmt(ctx, c.Stmt, p)
		}
		elapsed := time.Since(start)
		fmt.Fprintf(p.mustFD(FDStderr), "real\t%s\n", elapsed)
		return res

	default:
		return Result{Code: 1, Err: fmt.Errorf("shell: unhandled command node %T", cm)}
	}
}

func boolCode(b bool) uint8 {
	if b {
		return 0
	}
	return 1
}

// mustFD returns the handle at fd, or a null sink if absent.
func (p Params) mustFD(fd int) OpenFile {
	if f, ok := p.FDs.Get(fd); ok {
		return f
	}
	return NewNullSink()
}

func (sh *Shell) binaryCmd(ctx context.Context, c *syntax.BinaryCmd, p Params) Result {
	switch c.Op {
	case syntax.AndStmt, syntax.OrStmt:
		left := sh.stmt(ctx, c.X, p)
		if left.Disposition != DispNormal {
			return left
		}
		if (left.Code == 0) == (c.Op == syntax.AndStmt) {
			return sh.stmt(ctx, c.Y, p)
		}
		return left

	case syntax.Pipe, syntax.PipeAll:
		return sh.pipeline(ctx, c, p)
	}
	return Result{Code: 1, Err: fmt.Errorf("shell: unhandled binary op %v", c.Op)}
}

// pipeline connects c.X's stdout to c.Y's stdin via an OS pipe and runs
// both stages concurrently, honoring pipefail, grounded on the upstream
// interpreter's os.Pipe + goroutine + sync.WaitGroup pattern.
func (sh *Shell) pipeline(ctx context.Context, c *syntax.BinaryCmd, p Params) Result {
	pr, pw, err := NewPipe()
	if err != nil {
		return Result{Code: 1, Err: err}
	}

	leftP := p.Clone()
	leftP.FDs.Set(FDStdout, pw)
	if c.Op == syntax.PipeAll {
		leftP.FDs.Set(FDStderr, pw)
	}

	rightP := p.Clone()
	rightP.FDs.Set(FDStdin, pr)

	// Both pipeline stages run in their own subshell copies, both for
	// bash-compatible variable-assignment scoping and so the two stages
	// never touch the same *Shell concurrently (Environ/hash-cache state
	// is not safe for concurrent use across goroutines).
	left := sh.subshellCopy()
	right := sh.subshellCopy()

	var leftRes Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		leftRes = left.stmt(ctx, c.X, leftP)
		pw.Close()
	}()

	rightRes := right.stmt(ctx, c.Y, rightP)
	pr.Close()
	wg.Wait()

	if sh.Opts.PipeFail && leftRes.Code != 0 && rightRes.Code == 0 {
		rightRes.Code = leftRes.Code
	}
	if leftRes.Err != nil && rightRes.Err == nil {
		rightRes.Err = leftRes.Err
	}
	return rightRes
}

func (sh *Shell) ifClause(ctx context.Context, c *syntax.IfClause, p Params) Result {
	cond := sh.runStmts(ctx, c.Cond, p)
	if cond.Disposition != DispNormal {
		return cond
	}
	if cond.Code == 0 {
		return sh.runStmts(ctx, c.Then, p)
	}
	if c.Else != nil {
		return sh.cmd(ctx, c.Else, p)
	}
	return NormalResult(0)
}

func (sh *Shell) whileClause(ctx context.Context, c *syntax.WhileClause, p Params) Result {
	res := NormalResult(0)
	for {
		if p.Cancel.Cancelled() {
			return Result{Disposition: DispExit, Err: ctx.Err()}
		}
		cond := sh.runStmts(ctx, c.Cond, p)
		if cond.Disposition != DispNormal {
			return cond
		}
		stop := (cond.Code == 0) == c.Until
		if stop {
			return res
		}
		res = sh.runStmts(ctx, c.Do, p)
		switch res.Disposition {
		case DispBreak:
			if res.N > 1 {
				res.N--
				return res
			}
			return NormalResult(res.Code)
		case DispContinue:
			if res.N > 1 {
				res.N--
				return res
			}
			continue
		case DispReturn, DispExit:
			return res
		}
	}
}

func (sh *Shell) forClause(ctx context.Context, c *syntax.ForClause, p Params) Result {
	res := NormalResult(0)
	switch loop := c.Loop.(type) {
	case *syntax.WordIter:
		var items []string
		if loop.InPos.IsValid() {
			var err error
			items, err = sh.fields(ctx, p, loop.Items...)
			if err != nil {
				return Result{Code: 1, Err: err}
			}
		} else {
			items = sh.Positional
		}
		for _, item := range items {
			sh.Env.UpdateOrAdd(loop.Name.Value, ScalarValue(item), nil, LookupAnywhere, WriteGlobal)
			res = sh.runStmts(ctx, c.Do, p)
			switch res.Disposition {
			case DispBreak:
				if res.N > 1 {
					res.N--
					return res
				}
				return NormalResult(res.Code)
			case DispContinue:
				if res.N > 1 {
					res.N--
					return res
				}
				continue
			case DispReturn, DispExit:
				return res
			}
		}
		return res

	case *syntax.CStyleLoop:
		if loop.Init != nil {
			if _, err := sh.arithm(ctx, p, loop.Init); err != nil {
				return Result{Code: 1, Err: err}
			}
		}
		for {
			if loop.Cond != nil {
				n, err := sh.arithm(ctx, p, loop.Cond)
				if err != nil {
					return Result{Code: 1, Err: err}
				}
				if n == 0 {
					break
				}
			}
			res = sh.runStmts(ctx, c.Do, p)
			switch res.Disposition {
			case DispBreak:
				if res.N > 1 {
					res.N--
					return res
				}
				return NormalResult(res.Code)
			case DispContinue:
				if res.N > 1 {
					res.N--
					return res
				}
			case DispReturn, DispExit:
				return res
			}
			if loop.Post != nil {
				if _, err := sh.arithm(ctx, p, loop.Post); err != nil {
					return Result{Code: 1, Err: err}
				}
			}
		}
		return res
	}
	return res
}

func (sh *Shell) caseClause(ctx context.Context, c *syntax.CaseClause, p Params) Result {
	str, err := sh.literal(ctx, p, c.Word)
	if err != nil {
		return Result{Code: 1, Err: err}
	}
	for _, item := range c.Items {
		for _, word := range item.Patterns {
			pat, err := sh.patternOf(ctx, p, word)
			if err != nil {
				continue
			}
			if ok, err := matchGlobPattern(pat, str); err == nil && ok {
				return sh.runStmts(ctx, item.Stmts, p)
			}
		}
	}
	return NormalResult(0)
}

// matchGlobPattern reports whether str matches a shell glob pattern,
// delegating to mvdan.cc/sh/v3/pattern the way "case" and "[[ == ]]" both
// need.
func matchGlobPattern(pat, str string) (bool, error) {
	expr, err := pattern.Regexp(pat, 0)
	if err != nil {
		return false, err
	}
	return expr.MatchString(str), nil
}

func (sh *Shell) declClause(ctx context.Context, c *syntax.DeclClause, p Params) Result {
	local := false
	switch c.Variant.Value {
	case "local":
		local = true
	case "declare", "typeset":
		local = sh.Env.Depth() > 1
	}
	var exported, readonly bool
	switch c.Variant.Value {
	case "export":
		exported = true
	case "readonly":
		readonly = true
	}
	scope := WriteGlobal
	if local {
		scope = WriteLocal
	}
	for _, as := range c.Args {
		name := as.Name.Value
		if strings.HasPrefix(name, "-") {
			for _, ch := range name[1:] {
				switch ch {
				case 'x':
					exported = true
				case 'r':
					readonly = true
				case 'g':
					scope = WriteGlobal
				}
			}
			continue
		}
		var val Value
		if as.Value != nil {
			s, err := sh.literal(ctx, p, as.Value)
			if err != nil {
				return Result{Code: 1, Err: err}
			}
			val = ScalarValue(s)
		} else if existing, ok := sh.Env.Get(name); ok {
			val = Value{Kind: existing.Kind, Str: existing.Str, List: existing.List, Map: existing.Map}
		} else {
			val = ScalarValue("")
		}
		_, err := sh.Env.UpdateOrAdd(name, val, func(v *Variable) {
			if exported {
				v.Exported = true
			}
			if readonly {
				v.ReadOnly = true
			}
		}, LookupAnywhere, scope)
		if err != nil {
			return Result{Code: 1, Err: err}
		}
	}
	return NormalResult(0)
}

// callExpr handles the AST's simple-command node: bare assignments,
// command-scoped assignment overrides, and dispatch via callExpr's
// resolved argv resolution order.
func (sh *Shell) callExpr(ctx context.Context, c *syntax.CallExpr, p Params) Result {
	fields, err := sh.fields(ctx, p, c.Args...)
	if err != nil {
		return Result{Code: 1, Err: err}
	}

	if len(fields) == 0 {
		// Bare assignment(s): persist directly into the current scope.
		res := NormalResult(0)
		for _, as := range c.Assigns {
			val, err := sh.assignValue(ctx, p, as)
			if err != nil {
				return Result{Code: 1, Err: err}
			}
			if _, err := sh.Env.UpdateOrAdd(as.Name.Value, val, nil, LookupAnywhere, WriteGlobal); err != nil {
				return Result{Code: 1, Err: err}
			}
		}
		return res
	}

	// Assignments ahead of a command apply only for its duration.
	var restore []func()
	for _, as := range c.Assigns {
		name := as.Name.Value
		val, err := sh.assignValue(ctx, p, as)
		if err != nil {
			return Result{Code: 1, Err: err}
		}
		prev, existed := sh.Env.Get(name)
		var prevCopy Variable
		if existed {
			prevCopy = *prev
		}
		sh.Env.UpdateOrAdd(name, val, func(v *Variable) { v.Exported = true }, LookupAnywhere, WriteGlobal)
		restore = append(restore, func() {
			if existed {
				sh.Env.UpdateOrAdd(name, Value{Kind: prevCopy.Kind, Str: prevCopy.Str, List: prevCopy.List, Map: prevCopy.Map}, func(v *Variable) {
					v.Exported = prevCopy.Exported
					v.ReadOnly = prevCopy.ReadOnly
				}, LookupAnywhere, WriteGlobal)
			} else {
				sh.Env.Unset(name, LookupAnywhere)
			}
		})
	}
	res := sh.call(ctx, fields, p)
	for _, r := range restore {
		r()
	}
	return res
}

func (sh *Shell) assignValue(ctx context.Context, p Params, as *syntax.Assign) (Value, error) {
	if as.Array != nil {
		var list []string
		for _, elem := range as.Array.Elems {
			s, err := sh.literal(ctx, p, elem.Value)
			if err != nil {
				return Value{}, err
			}
			list = append(list, s)
		}
		return Value{Kind: KindIndexed, List: list}, nil
	}
	if as.Value == nil {
		return ScalarValue(""), nil
	}
	s, err := sh.literal(ctx, p, as.Value)
	if err != nil {
		return Value{}, err
	}
	return ScalarValue(s), nil
}

// call resolves argv[0] in order: special builtins, functions, regular
// builtins, then an external command (a name containing a slash is used
// as a path directly; any other name is searched in PATH with a hash
// cache). Bare assignments never reach call; callExpr handles them.
func (sh *Shell) call(ctx context.Context, args []string, p Params) Result {
	name := args[0]

	if fn, special, ok := sh.Builtin(name); ok && special {
		return fn(BuiltinContext{Ctx: ctx, Sh: sh, Params: p, Args: args})
	}

	if fndecl, ok := sh.Funcs.Get(name); ok {
		return sh.invoke(ctx, fndecl, args[1:], p)
	}

	if fn, _, ok := sh.Builtin(name); ok {
		return fn(BuiltinContext{Ctx: ctx, Sh: sh, Params: p, Args: args})
	}

	return sh.execExternal(ctx, args, p)
}

// invoke runs a user-defined function in a fresh scope, translating its
// internal return into a normal result at the call boundary.
func (sh *Shell) invoke(ctx context.Context, fn *Function, args []string, p Params) Result {
	sh.Env.PushScope()
	oldPositional := sh.Positional
	sh.Positional = args
	res := sh.stmt(ctx, fn.Body, p)
	sh.Positional = oldPositional
	sh.Env.PopScope()
	if res.Disposition == DispReturn {
		res.Disposition = DispNormal
	}
	return res
}

// InvokeFunction is the public embedding entry point for calling a
// registered function directly, bypassing command resolution.
func (sh *Shell) InvokeFunction(ctx context.Context, name string, args []string, p Params) (Result, error) {
	fn, ok := sh.Funcs.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("shell: no such function %q", name)
	}
	return sh.invoke(ctx, fn, args, p), nil
}

// execExternal resolves name via PATH (consulting and updating the hash
// cache), starts it as a child process, and waits on it through the proc
// package's cancellation-biased wait loop, streaming through the call's
// FD table.
func (sh *Shell) execExternal(ctx context.Context, args []string, p Params) Result {
	path, err := sh.lookPath(args[0])
	if err != nil {
		fmt.Fprintf(p.mustFD(FDStderr), "%s: command not found\n", args[0])
		return NormalResult(ExitCommandNotFound)
	}

	stdin, closeIn, err := sh.materializeFD(p, FDStdin, os.O_RDONLY)
	if err != nil {
		return Result{Code: 1, Err: err}
	}
	defer closeIn()
	stdout, closeOut, err := sh.materializeFD(p, FDStdout, os.O_WRONLY)
	if err != nil {
		return Result{Code: 1, Err: err}
	}
	defer closeOut()
	stderr, closeErr, err := sh.materializeFD(p, FDStderr, os.O_WRONLY)
	if err != nil {
		return Result{Code: 1, Err: err}
	}
	defer closeErr()

	process, err := os.StartProcess(path, args, &os.ProcAttr{
		Dir:   sh.Dir,
		Env:   envSlice(sh.Env.ExportedEnv()),
		Files: []*os.File{stdin, stdout, stderr},
	})
	if err != nil {
		fmt.Fprintf(p.mustFD(FDStderr), "%s: %v\n", args[0], err)
		return NormalResult(ExitNotExecutable)
	}

	id := sh.jobs.Add(process.Pid, strings.Join(args, " "))
	child := proc.New(process.Pid)
	outcome, res, err := child.Wait(p.Cancel.Context())
	switch outcome {
	case proc.Cancelled:
		sh.jobs.Update(id, func(j *Job) { j.State = JobDone; j.Exit = 130 })
		return Result{Code: 130, Disposition: DispNormal, Err: err}
	case proc.Stopped:
		sh.jobs.Update(id, func(j *Job) { j.State = JobStopped })
		return NormalResult(148)
	default:
		code := uint8(res.ExitCode)
		if res.Signaled {
			code = 128
		}
		sh.jobs.Update(id, func(j *Job) { j.State = JobDone; j.Exit = int(code) })
		if err != nil {
			return Result{Code: code, Err: err}
		}
		return NormalResult(code)
	}
}

// materializeFD returns a real *os.File for fd's current handle, bridging
// through an OS pipe with a copying goroutine when the handle has no
// native file descriptor (e.g. an in-memory buffer backing a heredoc or
// command substitution). The returned cleanup func must be called once
// the child no longer needs the descriptor.
func (sh *Shell) materializeFD(p Params, fd int, mode int) (*os.File, func(), error) {
	f, ok := p.FDs.Get(fd)
	if !ok {
		null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return nil, func() {}, err
		}
		return null, func() { null.Close() }, nil
	}
	if osf := f.File(); osf != nil {
		return osf, func() {}, nil
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, func() {}, err
	}
	if mode == os.O_RDONLY {
		go func() {
			io.Copy(pw, f)
			pw.Close()
		}()
		return pr, func() { pr.Close() }, nil
	}
	go func() {
		io.Copy(f, pr)
		pr.Close()
	}()
	return pw, func() { pw.Close() }, nil
}

func envSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// lookPath resolves name to an executable path using PATH, caching hits
// the way bash's command-hash table does.
func (sh *Shell) lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		return sh.resolvePath(name), nil
	}
	if sh.Opts.Restricted {
		return "", fmt.Errorf("restricted: cannot resolve %q by PATH", name)
	}
	if cached, ok := sh.hashCache[name]; ok {
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
		delete(sh.hashCache, name)
	}
	pathVar, _ := sh.Env.Get("PATH")
	pathList := os.Getenv("PATH")
	if pathVar != nil {
		pathList = pathVar.Str
	}
	for _, dir := range strings.Split(pathList, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			sh.hashCache[name] = candidate
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: not found", name)
}
