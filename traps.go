package shell

import (
	"context"
	"strings"
)

// TrapTable maps a signal (or pseudo-event name "EXIT"/"ERR"/"DEBUG") to
// the command text that should run when it fires
// "Traps".
type TrapTable struct {
	handlers map[string]string
}

// NewTrapTable returns an empty trap table.
func NewTrapTable() *TrapTable {
	return &TrapTable{handlers: make(map[string]string)}
}

// Set installs (or, with body == "", clears) the handler for name.
func (t *TrapTable) Set(name, body string) {
	if body == "" {
		delete(t.handlers, name)
		return
	}
	t.handlers[name] = body
}

// Get returns the handler command text for name, if any.
func (t *TrapTable) Get(name string) (string, bool) {
	body, ok := t.handlers[name]
	return body, ok
}

// Names lists the signals/events with a handler installed.
func (t *TrapTable) Names() []string {
	names := make([]string, 0, len(t.handlers))
	for n := range t.handlers {
		names = append(names, n)
	}
	return names
}

// runTrap parses and executes the handler registered for name, if any.
// Trap execution does not disturb the shell's last-exit-code. The engine
// never calls runTrap: no signal or pseudo-event runs a trap on its own.
func (sh *Shell) runTrap(ctx context.Context, name string) {
	body, ok := sh.traps.Get(name)
	if !ok || sh.inTrap {
		return
	}
	file, err := sh.parser.Parse(strings.NewReader(body), name+" trap")
	if err != nil {
		return
	}
	sh.inTrap = true
	savedExit := sh.LastExitCode
	sh.runStmts(ctx, file.Stmts, sh.defaultParams())
	sh.LastExitCode = savedExit
	sh.inTrap = false
}
