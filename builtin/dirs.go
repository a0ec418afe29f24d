package builtin

import (
	"fmt"
	"path/filepath"

	shell "github.com/kodegen/shellcore"
)

// Pwd prints the shell's current directory, honoring "-P" (physical,
// symlinks resolved) vs the default "-L" (logical, as tracked in $PWD).
func Pwd(c shell.BuiltinContext) shell.Result {
	physical := false
	for _, a := range c.Args[1:] {
		switch a {
		case "-P":
			physical = true
		case "-L":
			physical = false
		}
	}
	dir := c.Sh.WorkingDir()
	if physical {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			dir = real
		}
	}
	fmt.Fprintln(c.Stdout(), dir)
	return shell.NormalResult(0)
}

// Cd changes the shell's working directory.
func Cd(c shell.BuiltinContext) shell.Result {
	physical := false
	args := c.Args[1:]
	for len(args) > 0 && len(args[0]) > 1 && args[0][0] == '-' && args[0] != "-" {
		switch args[0] {
		case "-P":
			physical = true
		case "-L":
			physical = false
		default:
			fmt.Fprintf(c.Stderr(), "cd: %s: invalid option\n", args[0])
			return shell.NormalResult(shell.ExitInvalidUsage)
		}
		args = args[1:]
	}
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if err := shell.Cd(c.Sh, path, physical); err != nil {
		fmt.Fprintf(c.Stderr(), "cd: %v\n", err)
		return shell.NormalResult(1)
	}
	return shell.NormalResult(0)
}

// Pushd pushes the current directory and changes to the operand.
func Pushd(c shell.BuiltinContext) shell.Result {
	if len(c.Args) < 2 {
		fmt.Fprintln(c.Stderr(), "pushd: no other directory")
		return shell.NormalResult(1)
	}
	dir, err := shell.Pushd(c.Sh, c.Args[1])
	if err != nil {
		fmt.Fprintf(c.Stderr(), "pushd: %v\n", err)
		return shell.NormalResult(1)
	}
	fmt.Fprintln(c.Stdout(), shell.Dirs(c.Sh))
	_ = dir
	return shell.NormalResult(0)
}

// Popd pops the directory stack, changing to the new top unless "-n" is
// given.
func Popd(c shell.BuiltinContext) shell.Result {
	noChdir := false
	for _, a := range c.Args[1:] {
		if a == "-n" {
			noChdir = true
		}
	}
	if _, err := shell.Popd(c.Sh, noChdir); err != nil {
		fmt.Fprintf(c.Stderr(), "popd: %v\n", err)
		return shell.NormalResult(1)
	}
	fmt.Fprintln(c.Stdout(), shell.Dirs(c.Sh))
	return shell.NormalResult(0)
}

// Dirs prints the directory stack.
func Dirs(c shell.BuiltinContext) shell.Result {
	fmt.Fprintln(c.Stdout(), shell.Dirs(c.Sh))
	return shell.NormalResult(0)
}
