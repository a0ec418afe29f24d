package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirStack is the ordered sequence of absolute paths maintained by
// pushd/popd/dirs.
type DirStack struct {
	paths []string
}

// NewDirStack seeds the stack with the shell's initial working directory.
func NewDirStack(cwd string) *DirStack {
	return &DirStack{paths: []string{cwd}}
}

// Push records cwd as the new top of stack.
func (d *DirStack) Push(cwd string) {
	d.paths = append(d.paths, cwd)
}

// Pop removes and returns the top of stack. ok is false on an empty stack
// (the bootstrap entry always remains, so "empty" here means only the
// bootstrap entry is left and there's nothing above it to pop).
func (d *DirStack) Pop() (string, bool) {
	if len(d.paths) <= 1 {
		return "", false
	}
	top := d.paths[len(d.paths)-1]
	d.paths = d.paths[:len(d.paths)-1]
	return top, true
}

// Entries returns the stack from top to bottom, the order "dirs" prints.
func (d *DirStack) Entries() []string {
	out := make([]string, len(d.paths))
	for i, p := range d.paths {
		out[i] = d.paths[len(d.paths)-1-i]
	}
	return out
}

// Pushd pushes the shell's current directory onto its directory stack,
// changes to path, and updates PWD/OLDPWD. It returns the new directory.
func Pushd(sh *Shell, path string) (string, error) {
	abs, err := sh.resolveCD(path)
	if err != nil {
		return "", err
	}
	if err := os.Chdir(abs); err != nil {
		return "", err
	}
	sh.dirs.Push(sh.Dir)
	sh.setOldPWD(sh.Dir)
	sh.Dir = abs
	sh.setPWD(abs)
	return abs, nil
}

// ErrDirStackEmpty is returned by Popd when there is nothing to pop.
var ErrDirStackEmpty = fmt.Errorf("directory stack empty")

// Popd pops the top of the stack and, unless noChdir, changes to it.
func Popd(sh *Shell, noChdir bool) (string, error) {
	top, ok := sh.dirs.Pop()
	if !ok {
		return "", ErrDirStackEmpty
	}
	if !noChdir {
		if err := os.Chdir(top); err != nil {
			sh.dirs.Push(top) // leave the stack unchanged on failure
			return "", err
		}
		sh.setOldPWD(sh.Dir)
		sh.Dir = top
		sh.setPWD(top)
	}
	return top, nil
}

// resolveCD applies CDPATH, "-"/OLDPWD, and path canonicalization for "cd".
func (sh *Shell) resolveCD(path string) (string, error) {
	if path == "" {
		if home, ok := sh.Env.Get("HOME"); ok {
			path = home.String()
		} else {
			path = "/"
		}
	} else if path == "-" {
		if old, ok := sh.Env.Get("OLDPWD"); ok {
			path = old.String()
		} else {
			return "", fmt.Errorf("cd: OLDPWD not set")
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if cdpath, ok := sh.Env.Get("CDPATH"); ok && cdpath.Str != "" && !strings.HasPrefix(path, ".") {
		for _, prefix := range strings.Split(cdpath.Str, ":") {
			if prefix == "" {
				continue
			}
			candidate := filepath.Join(prefix, path)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return candidate, nil
			}
		}
	}
	return filepath.Join(sh.Dir, path), nil
}

// Cd changes the shell's working directory, honoring CDPATH, "-", and "-P" vs "-L" resolution.
// physical selects "-P" (resolve symlinks) over the default "-L" logical
// behavior.
func Cd(sh *Shell, path string, physical bool) error {
	abs, err := sh.resolveCD(path)
	if err != nil {
		return err
	}
	if physical {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
	}
	if err := os.Chdir(abs); err != nil {
		return err
	}
	sh.setOldPWD(sh.Dir)
	sh.Dir = abs
	sh.setPWD(abs)
	return nil
}

func (sh *Shell) setPWD(path string) {
	sh.Env.UpdateOrAdd("PWD", ScalarValue(path), func(v *Variable) { v.Exported = true }, LookupAnywhere, WriteGlobal)
}

func (sh *Shell) setOldPWD(path string) {
	sh.Env.UpdateOrAdd("OLDPWD", ScalarValue(path), func(v *Variable) { v.Exported = true }, LookupAnywhere, WriteGlobal)
}

// Dirs renders the stack the way the "dirs" builtin does: space-separated,
// tilde-shortened against HOME, top of stack first.
func Dirs(sh *Shell) string {
	home := ""
	if h, ok := sh.Env.Get("HOME"); ok {
		home = h.String()
	}
	parts := make([]string, 0, len(sh.dirs.paths))
	for _, p := range sh.dirs.Entries() {
		if home != "" && p == home {
			parts = append(parts, "~")
		} else if home != "" && strings.HasPrefix(p, home+"/") {
			parts = append(parts, "~"+strings.TrimPrefix(p, home))
		} else {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
