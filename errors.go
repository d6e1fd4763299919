package contracts

import (
	"strings"
	"unicode/utf8"
)

// Direction tells whether the party named by a frame supplied the value (In) or merely
// forwarded it across a boundary it does not own (Out).
type Direction int

const (
	In Direction = iota
	Out
)

// Invert flips the direction.
func (d Direction) Invert() Direction {
	if d == In {
		return Out
	}
	return In
}

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Frame is one blame-chain step: a rendered type with a caret line under the offending part.
type Frame struct {
	Type        string
	Indicator   string
	Declared    *Location
	Responsible *Location
	Direction   Direction
}

// NewFrame pads (or defaults) indicator to the rune length of typ.
func NewFrame(typ, indicator string, declared, responsible *Location) Frame {
	if indicator == "" {
		indicator = strings.Repeat("^", utf8.RuneCountInString(typ))
	}
	return Frame{
		Type:        typ,
		Indicator:   padRight(indicator, utf8.RuneCountInString(typ)),
		Declared:    declared,
		Responsible: responsible,
	}
}

// ValueContractError reports a value that failed its contract.
//
// Values are immutable: every With* method returns a new error and leaves the receiver intact,
// so one error may be re-raised from several contexts.
type ValueContractError struct {
	Given     any
	Expected  string
	Frames    []Frame // innermost first
	Notes     []string
	Previous  *ValueContractError
	Direction Direction
}

// NewValueContractError starts a chain for given failing expected.
func NewValueContractError(given any, expected string) *ValueContractError {
	return &ValueContractError{Given: given, Expected: expected, Direction: In}
}

func (e *ValueContractError) clone() *ValueContractError {
	out := *e
	return &out
}

// WithFrame appends f (outward) tagged with the error's current direction.
func (e *ValueContractError) WithFrame(f Frame) *ValueContractError {
	out := e.clone()
	f.Direction = e.Direction
	frames := make([]Frame, len(e.Frames), len(e.Frames)+1)
	copy(frames, e.Frames)
	out.Frames = append(frames, f)
	return out
}

// WithNote appends a note.
func (e *ValueContractError) WithNote(note string) *ValueContractError {
	out := e.clone()
	notes := make([]string, len(e.Notes), len(e.Notes)+1)
	copy(notes, e.Notes)
	out.Notes = append(notes, note)
	return out
}

// WithPrevious attaches the violation that caused this one.
func (e *ValueContractError) WithPrevious(prev *ValueContractError) *ValueContractError {
	out := e.clone()
	out.Previous = prev
	return out
}

// WithInvertedDirection flips the direction used for frames added from now on.
func (e *ValueContractError) WithInvertedDirection() *ValueContractError {
	out := e.clone()
	out.Direction = e.Direction.Invert()
	return out
}

// Settled marks the chain Out. Contexts call it after recording the party at fault so that
// outer frames only contribute context.
func (e *ValueContractError) Settled() *ValueContractError {
	if e.Direction == Out {
		return e
	}
	return e.WithInvertedDirection()
}

// NextTypeAndIndicator returns the outermost rendered type and its caret line, which the next
// enclosing context embeds into its own rendering.
func (e *ValueContractError) NextTypeAndIndicator() (string, string) {
	if n := len(e.Frames); n > 0 {
		f := e.Frames[n-1]
		return f.Type, f.Indicator
	}
	return e.Expected, strings.Repeat("^", utf8.RuneCountInString(e.Expected))
}

// LastResponsible returns the outermost responsible location recorded while the chain was In.
func (e *ValueContractError) LastResponsible() *Location {
	for i := len(e.Frames) - 1; i >= 0; i-- {
		f := e.Frames[i]
		if f.Responsible != nil && f.Direction == In {
			return f.Responsible
		}
	}
	return nil
}

// LastDeclared returns the outermost declared location, i.e. the written contract that was broken.
func (e *ValueContractError) LastDeclared() *Location {
	for i := len(e.Frames) - 1; i >= 0; i-- {
		if e.Frames[i].Declared != nil {
			return e.Frames[i].Declared
		}
	}
	return nil
}

func (e *ValueContractError) Error() string {
	if e == nil {
		return "contract violation"
	}
	return e.Render(DefaultSnippetLines)
}

// ConfigurationError reports an ill-formed contract. It is only returned while building checkers.
type ConfigurationError struct {
	Message   string
	Locations []Location
	Err       error
}

func configErrorf(msg string, declared *Location) *ConfigurationError {
	e := &ConfigurationError{Message: msg}
	if declared != nil {
		e.Locations = []Location{*declared}
	}
	return e
}

// WithLocation returns a copy with loc appended.
func (e *ConfigurationError) WithLocation(loc Location) *ConfigurationError {
	out := *e
	out.Locations = append(append([]Location(nil), e.Locations...), loc)
	return &out
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "invalid contract"
	}
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	for _, loc := range e.Locations {
		b.WriteString("\n")
		b.WriteString(loc.String())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
