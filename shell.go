// Package shell implements an embeddable POSIX/bash-compatible shell
// execution engine: a self-contained interpreter for the mvdan.cc/sh/v3
// syntax tree that a host program can drive without forking a real shell
// binary.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	vfs "github.com/kodegen/shellcore/fs"
)

// BuiltinContext is what a builtin function receives to do its work: the
// shell it's running in, the cancellation-aware context for the call, the
// per-call Params (FD table, cancellation token, process-group policy),
// and its own argv (args[0] is the builtin's name).
type BuiltinContext struct {
	Ctx    context.Context
	Sh     *Shell
	Params Params
	Args   []string
}

// Stdin/Stdout/Stderr are convenience accessors over the call's FD table,
// falling back to a null sink if the table has no entry (should not
// normally happen, since NewFDTable always wires 0/1/2).
func (c BuiltinContext) Stdin() io.Reader {
	if f, ok := c.Params.FDs.Get(FDStdin); ok {
		return f
	}
	return NewNullSink()
}

func (c BuiltinContext) Stdout() io.Writer {
	if f, ok := c.Params.FDs.Get(FDStdout); ok {
		return f
	}
	return NewNullSink()
}

func (c BuiltinContext) Stderr() io.Writer {
	if f, ok := c.Params.FDs.Get(FDStderr); ok {
		return f
	}
	return NewNullSink()
}

// BuiltinFunc is the shape of a registered builtin. Special builtins
// (resolved ahead of functions in command lookup, e.g. "export",
// "readonly", ":") are told apart from regular ones by the Special flag
// at registration time, not by their signature.
type BuiltinFunc func(BuiltinContext) Result

type builtinEntry struct {
	fn      BuiltinFunc
	special bool
}

// Shell is the central state container described here: variable
// environment, function registry, open-file table defaults, directory
// stack, job table, trap table, and the shell-level attributes that
// together make up one independent shell instance.
type Shell struct {
	Name   string
	Opts   Options
	Env    *Environ
	Funcs  *FuncRegistry
	Dir    string
	Positional []string

	LastExitCode uint8
	PID          int

	builtins map[string]builtinEntry
	hashCache map[string]string

	dirs  *DirStack
	jobs  *JobTable
	traps *TrapTable

	parser *syntax.Parser

	fsys vfs.FileSystem

	defaultFDs *FDTable
	inTrap     bool

	// init* snapshot the builder-time configuration so Reset can restore
	// a pristine instance without re-running the Builder.
	initEnv map[string]string
	initDir string
}

// Builder is a functional-options constructor covering the full set of
// shell-level attributes: login shell, interactive, posix mode,
// restricted, argv0, environment inheritance, the builtin set, and
// default I/O.
type Builder struct {
	name        string
	opts        Options
	env         map[string]string
	inheritEnv  bool
	dir         string
	positional  []string
	builtins    map[string]builtinEntry
	stdin       OpenFile
	stdout      OpenFile
	stderr      OpenFile
	fsys        vfs.FileSystem
}

// BuilderOption configures a Builder. Options are applied in order, so a
// later option can override an earlier one.
type BuilderOption func(*Builder)

// WithArgv0 sets the shell's reported name ($0).
func WithArgv0(name string) BuilderOption {
	return func(b *Builder) { b.name = name }
}

// WithLogin marks the shell as a login shell.
func WithLogin(v bool) BuilderOption { return func(b *Builder) { b.opts.Login = v } }

// WithInteractive marks the shell as interactive (affects prompt use and
// job-control messages, not parsing).
func WithInteractive(v bool) BuilderOption { return func(b *Builder) { b.opts.Interactive = v } }

// WithPosix enables POSIX-mode semantics where they diverge from bash.
func WithPosix(v bool) BuilderOption { return func(b *Builder) { b.opts.Posix = v } }

// WithRestricted enables restricted-shell mode.
func WithRestricted(v bool) BuilderOption { return func(b *Builder) { b.opts.Restricted = v } }

// WithInheritEnv copies the host process's environment into the shell's
// global scope, each variable marked Exported, before any WithEnv entries
// are applied.
func WithInheritEnv(v bool) BuilderOption { return func(b *Builder) { b.inheritEnv = v } }

// WithEnv seeds (or overrides, if WithInheritEnv is also set) the global
// scope's exported variables.
func WithEnv(env map[string]string) BuilderOption {
	return func(b *Builder) {
		for k, v := range env {
			b.env[k] = v
		}
	}
}

// WithDir sets the shell's initial working directory. Defaults to the
// host process's current directory.
func WithDir(dir string) BuilderOption { return func(b *Builder) { b.dir = dir } }

// WithPositionalParams sets $1, $2, ... ($@/$#).
func WithPositionalParams(args []string) BuilderOption {
	return func(b *Builder) { b.positional = append([]string(nil), args...) }
}

// WithStdIO sets the shell's default standard streams, used by top-level
// Exec/Run calls that don't supply their own Params.
func WithStdIO(stdin io.Reader, stdout, stderr io.Writer) BuilderOption {
	return func(b *Builder) {
		if f, ok := stdin.(OpenFile); ok {
			b.stdin = f
		} else if f, ok := stdin.(*os.File); ok {
			b.stdin = NewOSFile(f)
		} else {
			b.stdin = &readerFile{stdin}
		}
		b.stdout = asOpenFile(stdout)
		b.stderr = asOpenFile(stderr)
	}
}

// WithBuiltin registers (or overrides) a single builtin. special marks it
// as a POSIX special builtin for command-resolution purposes.
func WithBuiltin(name string, fn BuiltinFunc, special bool) BuilderOption {
	return func(b *Builder) { b.builtins[name] = builtinEntry{fn: fn, special: special} }
}

// WithFileSystem sets the filesystem that filesystem-touching builtins
// (cat, ls, mkdir, rm) read and write through for relative paths, instead
// of the host's real disk. Pass fs.NewMemFS() for a sandboxed shell, or a
// fs.SnapshotFS of an embedded fs.FS to seed one with fixed content.
// Defaults to fs.NewDiskFS rooted at the process's current directory,
// which "cd" keeps in step with the shell's working directory.
func WithFileSystem(f vfs.FileSystem) BuilderOption {
	return func(b *Builder) { b.fsys = f }
}

// WithBuiltins registers a whole table at once, as produced by e.g. a
// builtin package's Default() function. Entries here are regular (not
// special) builtins; call WithBuiltin afterward to mark specific ones
// special.
func WithBuiltins(table map[string]BuiltinFunc) BuilderOption {
	return func(b *Builder) {
		for name, fn := range table {
			b.builtins[name] = builtinEntry{fn: fn}
		}
	}
}

type readerFile struct{ r io.Reader }

func (r *readerFile) Read(p []byte) (int, error)  { return r.r.Read(p) }
func (r *readerFile) Write([]byte) (int, error)   { return 0, fmt.Errorf("read-only stream") }
func (r *readerFile) Close() error                { return nil }
func (r *readerFile) File() *os.File              { return nil }

type writerFile struct{ w io.Writer }

func (w *writerFile) Read([]byte) (int, error)     { return 0, io.EOF }
func (w *writerFile) Write(p []byte) (int, error)  { return w.w.Write(p) }
func (w *writerFile) Close() error                 { return nil }
func (w *writerFile) File() *os.File {
	if f, ok := w.w.(*os.File); ok {
		return f
	}
	return nil
}

func asOpenFile(w io.Writer) OpenFile {
	if f, ok := w.(OpenFile); ok {
		return f
	}
	if f, ok := w.(*os.File); ok {
		return NewOSFile(f)
	}
	return &writerFile{w}
}

// New builds a Shell from the given options, applying each BuilderOption
// in order before seeding the environment and installing builtins.
func New(opts ...BuilderOption) (*Shell, error) {
	b := &Builder{
		env:      make(map[string]string),
		builtins: make(map[string]builtinEntry),
		stdin:    NewOSFile(os.Stdin),
		stdout:   NewOSFile(os.Stdout),
		stderr:   NewOSFile(os.Stderr),
	}
	for _, o := range opts {
		o(b)
	}

	dir := b.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("shell: resolve working directory: %w", err)
		}
		dir = wd
	}

	sh := &Shell{
		Name:       b.name,
		Opts:       b.opts,
		Env:        NewEnviron(),
		Funcs:      NewFuncRegistry(),
		Dir:        dir,
		Positional: b.positional,
		builtins:   make(map[string]builtinEntry, len(b.builtins)),
		hashCache:  make(map[string]string),
		dirs:       NewDirStack(dir),
		jobs:       NewJobTable(),
		traps:      NewTrapTable(),
		parser:     syntax.NewParser(syntax.KeepComments(false)),
		defaultFDs: NewFDTable(b.stdin, b.stdout, b.stderr),
		initDir:    dir,
		initEnv:    make(map[string]string, len(b.env)),
		fsys:       b.fsys,
	}
	if sh.fsys == nil {
		// Rooted at "." rather than the resolved absolute dir: dirFS joins
		// names onto its root without ever producing a leading "/", so a
		// "." root resolves relative to the process's current directory at
		// each call, which "cd" keeps in step with sh.Dir via os.Chdir.
		sh.fsys = vfs.NewDiskFS(".")
	}
	if b.inheritEnv {
		for _, kv := range os.Environ() {
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					sh.Env.UpdateOrAdd(kv[:i], ScalarValue(kv[i+1:]), func(v *Variable) { v.Exported = true }, LookupAnywhere, WriteGlobal)
					break
				}
			}
		}
	}
	for k, v := range b.env {
		sh.initEnv[k] = v
		sh.Env.UpdateOrAdd(k, ScalarValue(v), func(vr *Variable) { vr.Exported = true }, LookupAnywhere, WriteGlobal)
	}
	sh.Env.UpdateOrAdd("PWD", ScalarValue(dir), func(v *Variable) { v.Exported = true }, LookupAnywhere, WriteGlobal)
	for name, e := range b.builtins {
		sh.builtins[name] = e
	}
	sh.PID = os.Getpid()
	return sh, nil
}

// Reset restores the shell to the pristine state New produced: a fresh
// variable environment (re-seeded from the builder-time environment), no
// user-defined functions, an empty job table, no traps, and the initial
// working directory. Builtins and shell-level Options survive a Reset,
// leaving option state untouched across a Reset, the way a host expects to keep its configured behavior after clearing script state.
func (sh *Shell) Reset() {
	sh.Env = NewEnviron()
	for k, v := range sh.initEnv {
		sh.Env.UpdateOrAdd(k, ScalarValue(v), func(vr *Variable) { vr.Exported = true }, LookupAnywhere, WriteGlobal)
	}
	sh.Dir = sh.initDir
	sh.Env.UpdateOrAdd("PWD", ScalarValue(sh.Dir), func(v *Variable) { v.Exported = true }, LookupAnywhere, WriteGlobal)
	sh.Funcs = NewFuncRegistry()
	sh.jobs = NewJobTable()
	sh.traps = NewTrapTable()
	sh.dirs = NewDirStack(sh.Dir)
	sh.hashCache = make(map[string]string)
	sh.LastExitCode = 0
	sh.inTrap = false
}

// defaultParams builds the Params a top-level call uses when the caller
// doesn't supply its own: the builder's default streams, a
// background-derived cancellation token, and inherited process-group
// policy.
func (sh *Shell) defaultParams() Params {
	return Params{
		FDs:      sh.defaultFDs.Clone(),
		Cancel:   NewCancellationToken(context.Background()),
		PGPolicy: PGInherit,
	}
}

// DefaultParams exposes the Params a top-level call uses when a host
// doesn't need to override FDs, cancellation, or process-group policy.
func (sh *Shell) DefaultParams() Params { return sh.defaultParams() }

// RegisterBuiltin installs a builtin at runtime (e.g. for a host embedding
// custom commands).
func (sh *Shell) RegisterBuiltin(name string, fn BuiltinFunc, special bool) {
	sh.builtins[name] = builtinEntry{fn: fn, special: special}
}

// Builtin returns the registered builtin named name, if any, along with
// whether it's a special builtin for command-resolution purposes.
func (sh *Shell) Builtin(name string) (BuiltinFunc, bool, bool) {
	e, ok := sh.builtins[name]
	return e.fn, e.special, ok
}

// Parse parses src under the given name (used in diagnostics), producing
// the syntax.File that RunAST/Exec consume. Parsing is the mvdan.cc/sh/v3
// syntax package's job; Shell only drives it.
func (sh *Shell) Parse(src io.Reader, name string) (*syntax.File, error) {
	return sh.parser.Parse(src, name)
}

// Exec parses and runs src as a shell script under the given params,
// returning the final Result. It's the main embedding entry point.
func (sh *Shell) Exec(ctx context.Context, src io.Reader, name string, p Params) (Result, error) {
	file, err := sh.Parse(src, name)
	if err != nil {
		return Result{}, fmt.Errorf("shell: parse %s: %w", name, err)
	}
	return sh.RunAST(ctx, file, p), nil
}

// RunString is Exec over an in-memory string, the common case for
// one-liners and "-c" style invocation.
func (sh *Shell) RunString(ctx context.Context, src string, p Params) (Result, error) {
	return sh.Exec(ctx, strings.NewReader(src), "<string>", p)
}

// RunAST runs an already-parsed file's top-level statement list.
func (sh *Shell) RunAST(ctx context.Context, file *syntax.File, p Params) Result {
	return sh.runStmts(ctx, file.Stmts, p)
}

// Variables exposes the variable environment for host introspection.
func (sh *Shell) Variables() *Environ { return sh.Env }

// FunctionNames lists registered function names, sorted.
func (sh *Shell) FunctionNames() []string {
	var names []string
	sh.Funcs.Iter(func(name string, _ *Function) bool {
		names = append(names, name)
		return true
	})
	return names
}

// WorkingDir returns the shell's current directory.
func (sh *Shell) WorkingDir() string { return sh.Dir }

// Filesystem returns the vfs.FileSystem that filesystem-touching
// builtins should use in place of direct os calls.
func (sh *Shell) Filesystem() vfs.FileSystem { return sh.fsys }

// Jobs exposes the background job table for builtins like "jobs"/"wait".
func (sh *Shell) Jobs() *JobTable { return sh.jobs }

// Traps exposes the trap table for the "trap" builtin.
func (sh *Shell) Traps() *TrapTable { return sh.traps }

// HashCache exposes the PATH lookup cache for the "hash" builtin.
func (sh *Shell) HashCache() map[string]string { return sh.hashCache }

// ForgetHash clears name from the PATH lookup cache, or the whole cache if
// name is empty, per the "hash -r"/"hash -d" forms.
func (sh *Shell) ForgetHash(name string) {
	if name == "" {
		sh.hashCache = make(map[string]string)
		return
	}
	delete(sh.hashCache, name)
}
