// Package script parses and runs command files: one directive per line,
// driving a GPS receiver through a session.
package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"mtk-gps-utils/internal/mtk"
)

// Kind discriminates what a command-file line asks for.
type Kind int

const (
	// KindCommand sends a protocol command and requires an acknowledgement.
	KindCommand Kind = iota
	// KindCommandNoAck sends a protocol command fire-and-forget. Written
	// with a leading '-' in the file.
	KindCommandNoAck
	// KindSetSpeed moves the chip and the local port to a new rate.
	KindSetSpeed
	// KindSleep pauses the run.
	KindSleep
	// KindSetClock sets the host clock from the receiver's time.
	KindSetClock
	// KindRun suspends the port and runs an external program.
	KindRun
)

// Directive is one parsed command-file line. Parsing resolves the textual
// form once; running never re-examines prefixes or keywords.
type Directive struct {
	Kind  Kind
	Body  string        // KindCommand, KindCommandNoAck
	Speed int           // KindSetSpeed
	Pause time.Duration // KindSleep
	Argv  []string      // KindRun

	// Line is the expanded source text, quoted in diagnostics.
	Line string
}

// namedCommands maps reset keywords to the command bodies they stand for.
var namedCommands = map[string]string{
	"hot_start":     mtk.CmdHotStart,
	"warm_start":    mtk.CmdWarmStart,
	"cold_start":    mtk.CmdColdStart,
	"factory_reset": mtk.CmdFactoryReset,
}

// ParseLine parses one non-blank, non-comment line that has already been
// variable-expanded.
func ParseLine(line string) (Directive, error) {
	line = strings.TrimSpace(line)
	d := Directive{Line: line}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return d, fmt.Errorf("empty directive")
	}

	switch fields[0] {
	case "setspeed":
		if len(fields) != 2 {
			return d, fmt.Errorf("setspeed wants one argument, got %d", len(fields)-1)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return d, fmt.Errorf("bad speed %q", fields[1])
		}
		d.Kind = KindSetSpeed
		d.Speed = n
		return d, nil

	case "sleep":
		if len(fields) != 2 {
			return d, fmt.Errorf("sleep wants one argument, got %d", len(fields)-1)
		}
		sec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || sec < 0 {
			return d, fmt.Errorf("bad sleep duration %q", fields[1])
		}
		d.Kind = KindSleep
		d.Pause = time.Duration(sec * float64(time.Second))
		return d, nil

	case "set_system_clock":
		if len(fields) != 1 {
			return d, fmt.Errorf("set_system_clock takes no arguments")
		}
		d.Kind = KindSetClock
		return d, nil

	case "run":
		// Shell-style splitting so helper paths and arguments may be
		// quoted. fields[0] == "run" guarantees the literal prefix.
		argv, err := shlex.Split(strings.TrimSpace(line[len("run"):]))
		if err != nil {
			return d, fmt.Errorf("run: %v", err)
		}
		if len(argv) == 0 {
			return d, fmt.Errorf("run wants a program to execute")
		}
		d.Kind = KindRun
		d.Argv = argv
		return d, nil
	}

	if body, ok := namedCommands[fields[0]]; ok {
		if len(fields) != 1 {
			return d, fmt.Errorf("%s takes no arguments", fields[0])
		}
		d.Kind = KindCommand
		d.Body = body
		return d, nil
	}

	body := line
	if strings.HasPrefix(body, "-") {
		d.Kind = KindCommandNoAck
		body = strings.TrimSpace(strings.TrimPrefix(body, "-"))
	} else {
		d.Kind = KindCommand
	}
	if body == "" {
		return d, fmt.Errorf("empty command body")
	}
	d.Body = body
	return d, nil
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand replaces ${NAME} references from vars first and the process
// environment second. An unknown name is an error: a typo should fail the
// file, not reach the chip half-substituted.
func expand(line string, vars map[string]string) (string, error) {
	var missing string
	out := varPattern.ReplaceAllStringFunc(line, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return m
	})
	if missing != "" {
		return "", fmt.Errorf("undefined variable ${%s}", missing)
	}
	return out, nil
}

// Parse reads a whole command file: blank lines and '#' comments are
// skipped, everything else is expanded and parsed. Errors carry the line
// number.
func Parse(r io.Reader, vars map[string]string) ([]Directive, error) {
	var ds []Directive
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		expanded, err := expand(line, vars)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		d, err := ParseLine(expanded)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		ds = append(ds, d)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ParseFile opens and parses path.
func ParseFile(path string, vars map[string]string) ([]Directive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := Parse(f, vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}
