package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	shell "github.com/kodegen/shellcore"
	"github.com/kodegen/shellcore/builtin"
	"github.com/kodegen/shellcore/prompt"
	"golang.org/x/term"
	"mvdan.cc/sh/v3/syntax"
)

var (
	command = flag.String("c", "", "command to be executed")
	login   = flag.Bool("l", false, "run as a login shell")
)

func main() {
	flag.Parse()
	if err := runAll(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newShell() (*shell.Shell, error) {
	opts := []shell.BuilderOption{
		shell.WithStdIO(os.Stdin, os.Stdout, os.Stderr),
		shell.WithInheritEnv(true),
		shell.WithLogin(*login),
		shell.WithBuiltins(builtin.Default()),
	}
	for name, fn := range builtin.Special() {
		opts = append(opts, shell.WithBuiltin(name, fn, true))
	}
	return shell.New(opts...)
}

func runAll() error {
	sh, err := newShell()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if *command != "" {
		return run(ctx, sh, strings.NewReader(*command), "<command-line>")
	}
	if flag.NArg() == 0 {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return runInteractive(ctx, sh, os.Stdin, os.Stdout)
		}
		return run(ctx, sh, os.Stdin, "<stdin>")
	}
	for _, path := range flag.Args() {
		if err := runPath(ctx, sh, path); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, sh *shell.Shell, reader io.Reader, name string) error {
	res, err := sh.Exec(ctx, reader, name, sh.DefaultParams())
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	if res.Code != 0 {
		os.Exit(int(res.Code))
	}
	return nil
}

func runPath(ctx context.Context, sh *shell.Shell, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return run(ctx, sh, f, path)
}

func ps(sh *shell.Shell, name, fallback string) string {
	v, ok := sh.Variables().Get(name)
	if !ok || v.String() == "" {
		return fallback
	}
	return prompt.Expand(sh, v.String())
}

func runInteractive(ctx context.Context, sh *shell.Shell, stdin io.Reader, stdout io.Writer) error {
	parser := syntax.NewParser()
	fmt.Fprint(stdout, ps(sh, "PS1", "$ "))
	var runErr error
	fn := func(stmts []*syntax.Stmt) bool {
		if parser.Incomplete() {
			fmt.Fprint(stdout, ps(sh, "PS2", "> "))
			return true
		}
		for _, stmt := range stmts {
			file := &syntax.File{Stmts: []*syntax.Stmt{stmt}}
			res := sh.RunAST(ctx, file, sh.DefaultParams())
			if res.Err != nil {
				runErr = res.Err
				fmt.Fprintln(os.Stderr, res.Err)
			}
			if res.Disposition == shell.DispExit {
				return false
			}
		}
		fmt.Fprint(stdout, ps(sh, "PS1", "$ "))
		return true
	}
	if err := parser.Interactive(stdin, fn); err != nil {
		return err
	}
	return runErr
}
