package prompt

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	shell "github.com/kodegen/shellcore"
)

func newTestShell(t *testing.T) *shell.Shell {
	t.Helper()
	sh, err := shell.New(shell.WithArgv0("testsh"), shell.WithDir(t.TempDir()))
	qt.Assert(t, qt.IsNil(err))
	return sh
}

func TestExpandLiteral(t *testing.T) {
	sh := newTestShell(t)
	qt.Assert(t, qt.Equals(Expand(sh, "hello> "), "hello> "))
}

func TestExpandDollarByEffectiveUID(t *testing.T) {
	sh := newTestShell(t)
	got := Expand(sh, "\\$ ")
	if got != "$ " && got != "# " {
		t.Fatalf("unexpected prompt char rendering: %q", got)
	}
}

func TestExpandWorkingDirBasename(t *testing.T) {
	sh := newTestShell(t)
	qt.Assert(t, qt.Equals(Expand(sh, "\\W"), base(sh.WorkingDir())))
}

func base(dir string) string {
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			return dir[i+1:]
		}
	}
	return dir
}

func TestExpandShellName(t *testing.T) {
	sh := newTestShell(t)
	qt.Assert(t, qt.Equals(Expand(sh, "\\s"), "testsh"))
}

func TestExpandUnrecognizedEscapePassesThrough(t *testing.T) {
	sh := newTestShell(t)
	qt.Assert(t, qt.Equals(Expand(sh, "\\q"), "\\q"))
}

func TestExpandNewlineAndLiteralBackslash(t *testing.T) {
	sh := newTestShell(t)
	qt.Assert(t, qt.Equals(Expand(sh, "a\\nb\\\\c"), "a\nb\\c"))
}

func TestLRUEvictsOldestBeyondCacheSize(t *testing.T) {
	c := newLRU()
	for i := 0; i < cacheSize+5; i++ {
		c.put(string(rune('a'+i%26))+string(rune(i)), []piece{{kind: pieceLiteral, text: "x"}})
	}
	qt.Assert(t, qt.Equals(len(c.data) <= cacheSize, true))
	_, oldestKept := c.data[string(rune('a'))+string(rune(0))]
	qt.Assert(t, qt.IsFalse(oldestKept))
}
