package contracts

import (
	"strings"

	"github.com/openbindings/contracts-go/repr"
)

// Render renders the violation deterministically. The previous chain, if any, comes first.
func (e *ValueContractError) Render(snippetLines int) string {
	if e == nil {
		return "contract violation"
	}
	var b strings.Builder
	if e.Previous != nil {
		b.WriteString(e.Previous.Render(snippetLines))
		b.WriteString("\n\nwhich caused:\n\n")
	}

	b.WriteString("given:    ")
	b.WriteString(repr.String(e.Given))
	b.WriteString("\nexpected: ")
	if e.Expected == "nil" {
		b.WriteString("nil")
	} else {
		b.WriteString("value of type ")
		b.WriteString(e.Expected)
	}

	if len(e.Frames) > 0 {
		ty, ind := e.NextTypeAndIndicator()
		b.WriteString("\nin:       ")
		b.WriteString(ty)
		b.WriteString("\n          ")
		b.WriteString(strings.TrimRight(ind, " "))
	}

	var declared, responsible []Location
	for _, f := range e.Frames {
		if f.Declared != nil && !containsLocation(declared, *f.Declared) {
			declared = append(declared, *f.Declared)
		}
		if f.Responsible != nil && f.Direction == In && !containsLocation(responsible, *f.Responsible) {
			responsible = append(responsible, *f.Responsible)
		}
	}
	if len(declared) > 0 {
		b.WriteString("\n\ndeclared at: ")
		b.WriteString(renderLocations(declared, snippetLines))
	}
	if len(responsible) > 0 {
		b.WriteString("\n\ncaused by: ")
		b.WriteString(renderLocations(responsible, snippetLines))
	}
	if len(e.Notes) > 0 {
		b.WriteString("\n")
		for _, n := range e.Notes {
			b.WriteString("\nnote: ")
			b.WriteString(strings.TrimRight(n, " \n"))
		}
	}
	return b.String()
}

func containsLocation(locs []Location, l Location) bool {
	for _, x := range locs {
		if x.Equal(l) {
			return true
		}
	}
	return false
}

func renderLocations(locs []Location, snippetLines int) string {
	parts := make([]string, 0, len(locs))
	for _, l := range locs {
		parts = append(parts, l.render(snippetLines))
	}
	return strings.Join(parts, "\n             ")
}
