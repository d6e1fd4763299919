package contracts

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultSnippetLines is the number of snippet lines rendered per location when no Config overrides it.
const DefaultSnippetLines = 5

// Location is a position in a source unit.
//
// Two flavors are used throughout the package: declared locations (where a contract was written)
// and responsible locations (where an offending value was supplied). Equality ignores Snippet.
type Location struct {
	// Unit identifies the source unit (usually a file path).
	Unit string
	// Line is 1-based. Zero means unknown.
	Line int
	// Snippet is optional source text starting at Line.
	Snippet string
}

// At is shorthand for a snippet-less *Location.
func At(unit string, line int) *Location {
	return &Location{Unit: unit, Line: line}
}

// Equal reports whether l and o name the same (unit, line).
func (l Location) Equal(o Location) bool {
	return l.Unit == o.Unit && l.Line == o.Line
}

// Token returns the compact `unit:line` form accepted by ParseLocation.
func (l Location) Token() string {
	return l.Unit + ":" + strconv.Itoa(l.Line)
}

func (l Location) String() string {
	return l.render(DefaultSnippetLines)
}

func (l Location) render(maxLines int) string {
	var b strings.Builder
	b.WriteString(l.Token())
	if strings.TrimSpace(l.Snippet) == "" || maxLines <= 0 {
		return b.String()
	}
	lines := strings.Split(strings.TrimRight(l.Snippet, "\n"), "\n")
	for i, line := range lines {
		if i >= maxLines {
			b.WriteString("\n    | ...")
			break
		}
		fmt.Fprintf(&b, "\n%3d | %s", l.Line+i, strings.TrimRight(line, " \t\r"))
	}
	return b.String()
}

var locationRe = regexp.MustCompile(`^(.+):([0-9]+)$`)

// ParseLocation parses a `unit:line` token. The unit may itself contain colons (e.g. Windows paths);
// the line is taken from the last colon.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, errors.New("location: empty")
	}
	m := locationRe.FindStringSubmatch(s)
	if m == nil {
		return Location{}, fmt.Errorf("location: invalid %q (want unit:line)", s)
	}
	line, err := strconv.Atoi(m[2])
	if err != nil || line <= 0 {
		return Location{}, fmt.Errorf("location: invalid line in %q", s)
	}
	return Location{Unit: m[1], Line: line}, nil
}

// Locatable is implemented by values that know where they were declared.
// Callback implementations and generators use it to name themselves in blame output.
type Locatable interface {
	Location() *Location
}
