package sandbox

import (
	"fmt"
	"strings"
)

// Mode says how the submitted text is turned into a script.
type Mode int

const (
	// ModeExpression wraps the body in print() so a bare expression shows
	// its value.
	ModeExpression Mode = iota
	// ModeProgram runs the body verbatim.
	ModeProgram
)

func (m Mode) String() string {
	switch m {
	case ModeExpression:
		return "expression"
	case ModeProgram:
		return "program"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const fence = "```"

// Request is one piece of code to run.
type Request struct {
	Mode Mode
	// Body is the code with fences and the language tag removed.
	Body string
}

// ParseRequest derives the mode from a leading code fence and strips the
// backticks plus an optional "python" or "py" tag line.
func ParseRequest(text string) Request {
	mode := ModeExpression
	if strings.HasPrefix(text, fence) {
		mode = ModeProgram
	}

	body := strings.TrimLeft(text, "`")
	body = trimRepeatedPrefix(body, "python\n")
	body = trimRepeatedPrefix(body, "py\n")
	body = strings.TrimRight(body, "`")

	return Request{Mode: mode, Body: body}
}

func trimRepeatedPrefix(s, prefix string) string {
	for strings.HasPrefix(s, prefix) {
		s = s[len(prefix):]
	}
	return s
}

// Source is the script text written to disk.
func (r Request) Source() string {
	if r.Mode == ModeExpression {
		return fmt.Sprintf("print(%s)\n", r.Body)
	}
	return r.Body + "\n"
}
