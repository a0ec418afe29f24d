package shell

import (
	"sort"

	"mvdan.cc/sh/v3/syntax"
)

// Function is a named command body registered by "name() { ... }" or
// "function name { ... }".
type Function struct {
	Name     string
	Body     *syntax.Stmt
	Exported bool
	Traced   bool
}

// FuncRegistry is the shell's table of user-defined functions, consulted
// during command resolution after special built-ins and before regular
// built-ins and PATH.
type FuncRegistry struct {
	fns map[string]*Function
}

// NewFuncRegistry returns an empty registry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{fns: make(map[string]*Function)}
}

// Register installs or replaces the function named name.
func (r *FuncRegistry) Register(name string, body *syntax.Stmt) {
	r.fns[name] = &Function{Name: name, Body: body}
}

// Get returns the function named name, if any.
func (r *FuncRegistry) Get(name string) (*Function, bool) {
	f, ok := r.fns[name]
	return f, ok
}

// GetMut is Get, but documents intent to mutate the returned Function's
// attribute flags (e.g. from "export -f").
func (r *FuncRegistry) GetMut(name string) (*Function, bool) { return r.Get(name) }

// Remove deletes the function named name, if present.
func (r *FuncRegistry) Remove(name string) {
	delete(r.fns, name)
}

// Iter visits every registered function in name-sorted order.
func (r *FuncRegistry) Iter(fn func(name string, f *Function) bool) {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !fn(name, r.fns[name]) {
			return
		}
	}
}

// Clone returns a shallow copy suitable for a subshell: function bodies
// are shared (they're immutable ASTs), but the name->Function map is
// independent so registering or removing in the clone never affects r.
func (r *FuncRegistry) Clone() *FuncRegistry {
	c := NewFuncRegistry()
	for name, f := range r.fns {
		cp := *f
		c.fns[name] = &cp
	}
	return c
}
