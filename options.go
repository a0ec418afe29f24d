package shell

// Options holds the shell's on/off switches. Named fields rather than a bitset so callers can reference
// sh.Opts.ErrExit directly; optTable below maps them to their -o names
// and single-letter flags for the "set" builtin.
type Options struct {
	AllExport     bool
	ErrExit       bool
	NoExec        bool
	NoGlob        bool
	NoUnset       bool
	XTrace        bool
	PipeFail      bool
	Interactive   bool
	Login         bool
	Posix         bool
	Restricted    bool
	ExpandAliases bool
	PromptVars    bool
	Noclobber     bool
}

type optEntry struct {
	flag byte // 0 if no single-letter form
	name string
	get  func(*Options) bool
	set  func(*Options, bool)
}

var optTable = []optEntry{
	{'a', "allexport", func(o *Options) bool { return o.AllExport }, func(o *Options, b bool) { o.AllExport = b }},
	{'e', "errexit", func(o *Options) bool { return o.ErrExit }, func(o *Options, b bool) { o.ErrExit = b }},
	{'n', "noexec", func(o *Options) bool { return o.NoExec }, func(o *Options, b bool) { o.NoExec = b }},
	{'f', "noglob", func(o *Options) bool { return o.NoGlob }, func(o *Options, b bool) { o.NoGlob = b }},
	{'u', "nounset", func(o *Options) bool { return o.NoUnset }, func(o *Options, b bool) { o.NoUnset = b }},
	{'x', "xtrace", func(o *Options) bool { return o.XTrace }, func(o *Options, b bool) { o.XTrace = b }},
	{'C', "noclobber", func(o *Options) bool { return o.Noclobber }, func(o *Options, b bool) { o.Noclobber = b }},
	{0, "pipefail", func(o *Options) bool { return o.PipeFail }, func(o *Options, b bool) { o.PipeFail = b }},
	{0, "posix", func(o *Options) bool { return o.Posix }, func(o *Options, b bool) { o.Posix = b }},
	{0, "expand_aliases", func(o *Options) bool { return o.ExpandAliases }, func(o *Options, b bool) { o.ExpandAliases = b }},
	{0, "promptvars", func(o *Options) bool { return o.PromptVars }, func(o *Options, b bool) { o.PromptVars = b }},
}

// ByFlag returns the option matching a single-letter "set -X" flag.
func (o *Options) ByFlag(flag byte) (get func() bool, set func(bool), ok bool) {
	for _, e := range optTable {
		if e.flag == flag {
			return func() bool { return e.get(o) }, func(b bool) { e.set(o, b) }, true
		}
	}
	return nil, nil, false
}

// ByName returns the option matching a "set -o name" name.
func (o *Options) ByName(name string) (get func() bool, set func(bool), ok bool) {
	for _, e := range optTable {
		if e.name == name {
			return func() bool { return e.get(o) }, func(b bool) { e.set(o, b) }, true
		}
	}
	return nil, nil, false
}

// Names lists every option name known to "set -o", sorted as declared.
func (o *Options) Names() []string {
	names := make([]string, len(optTable))
	for i, e := range optTable {
		names[i] = e.name
	}
	return names
}
