// Package prompt renders PS1/PS2/PS4-style prompt specs: bash-style
// backslash escape sequences expanded against a running shell's state.
package prompt

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	shell "github.com/kodegen/shellcore"
)

// Expand renders spec, substituting each recognized "\x" escape with the
// piece of shell state it names. Unrecognized escapes pass through
// unchanged, backslash included, matching bash's lenient behavior.
func Expand(sh *shell.Shell, spec string) string {
	pieces, ok := cache.get(spec)
	if !ok {
		pieces = parse(spec)
		cache.put(spec, pieces)
	}
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(render(sh, p))
	}
	return b.String()
}

type pieceKind int

const (
	pieceLiteral pieceKind = iota
	pieceEscape
)

type piece struct {
	kind pieceKind
	text string // literal text, or the escape letter/sequence for pieceEscape
}

// parse splits spec into literal runs and recognized backslash escapes.
// The parsed []piece is what's cached; rendering (which depends on
// mutable shell state) always happens fresh.
func parse(spec string) []piece {
	var out []piece
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, piece{kind: pieceLiteral, text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(spec); i++ {
		if spec[i] != '\\' || i+1 >= len(spec) {
			lit.WriteByte(spec[i])
			continue
		}
		c := spec[i+1]
		switch c {
		case 'd', 't', 'T', '@', 'A', 'u', 'h', 'H', 'w', 'W', '$', 'n', 'r', 'e', 'a', '\\', 's', 'v', 'V', 'j', '[', ']', '#', '!', 'l':
			flush()
			out = append(out, piece{kind: pieceEscape, text: string(c)})
			i++
		default:
			if c >= '0' && c <= '7' {
				// \nnn: octal ASCII character, up to 3 digits.
				j := i + 1
				for j < len(spec) && j < i+4 && spec[j] >= '0' && spec[j] <= '7' {
					j++
				}
				flush()
				out = append(out, piece{kind: pieceEscape, text: spec[i+1 : j]})
				i = j - 1
				continue
			}
			lit.WriteByte(spec[i])
		}
	}
	flush()
	return out
}

func render(sh *shell.Shell, p piece) string {
	if p.kind == pieceLiteral {
		return p.text
	}
	if n, err := strconv.ParseInt(p.text, 8, 32); err == nil {
		return string(rune(n))
	}
	switch p.text {
	case "d":
		return time.Now().Format("Mon Jan 02")
	case "t":
		return time.Now().Format("15:04:05")
	case "T":
		return time.Now().Format("03:04:05")
	case "@":
		return time.Now().Format("03:04 PM")
	case "A":
		return time.Now().Format("15:04")
	case "u":
		if u, err := user.Current(); err == nil {
			return u.Username
		}
		return ""
	case "h":
		if hn, err := os.Hostname(); err == nil {
			if i := strings.IndexByte(hn, '.'); i >= 0 {
				return hn[:i]
			}
			return hn
		}
		return ""
	case "H":
		hn, _ := os.Hostname()
		return hn
	case "w":
		return sh.WorkingDir()
	case "W":
		return filepath.Base(sh.WorkingDir())
	case "$":
		if os.Geteuid() == 0 {
			return "#"
		}
		return "$"
	case "n":
		return "\n"
	case "r":
		return "\r"
	case "e":
		return "\x1b"
	case "a":
		return "\x07"
	case "\\":
		return "\\"
	case "s":
		return filepath.Base(sh.Name)
	case "v", "V":
		return shellVersion
	case "j":
		return fmt.Sprintf("%d", len(sh.Jobs().List()))
	case "[", "]":
		return ""
	case "#", "!", "l":
		// Command number, history number and tty basename are not
		// tracked; they render as empty strings.
		return ""
	default:
		return "\\" + p.text
	}
}

// shellVersion is reported for "\v"/"\V"; this engine doesn't track a
// bash-compatible release number, so it reports its own module version.
const shellVersion = "1.0"
