package contracts

import (
	"strings"
	"unicode/utf8"
)

// slot is a rendered type fragment with a caret line of the same rune length.
type slot struct {
	ty  string
	ind string
}

func plain(s string) slot {
	return slot{ty: s, ind: strings.Repeat(" ", utf8.RuneCountInString(s))}
}

func (s slot) add(o slot) slot {
	return slot{ty: s.ty + o.ty, ind: padRight(s.ind, utf8.RuneCountInString(s.ty)) + o.ind}
}

func joinSlots(sep string, parts []slot) slot {
	out := slot{}
	for i, p := range parts {
		if i > 0 {
			out = out.add(plain(sep))
		}
		out = out.add(p)
	}
	return out
}

func padRight(s string, n int) string {
	if d := n - utf8.RuneCountInString(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

// holeIn renders parts with parts[idx] replaced by hole.
func holeIn(parts []string, idx int, hole slot) []slot {
	out := make([]slot, len(parts))
	for i, p := range parts {
		if i == idx {
			out[i] = hole
			continue
		}
		out[i] = plain(p)
	}
	return out
}

// bracketLayout renders `name[p0, p1, ...]` with one slot highlighted.
func bracketLayout(name string, parts []string, idx int) func(slot) slot {
	return func(hole slot) slot {
		return plain(name + "[").add(joinSlots(", ", holeIn(parts, idx, hole))).add(plain("]"))
	}
}

// funcLayout renders `prefix(p0, p1) ret`. idx == len(params) highlights the result.
func funcLayout(prefix string, params []string, ret string, idx int) func(slot) slot {
	return func(hole slot) slot {
		out := plain(prefix + "(")
		if idx < len(params) {
			out = out.add(joinSlots(", ", holeIn(params, idx, hole))).add(plain(")"))
			if ret != "" {
				out = out.add(plain(" " + ret))
			}
			return out
		}
		out = out.add(plain(strings.Join(params, ", ") + ") "))
		return out.add(hole)
	}
}

// prefixLayout renders `prefix<hole>suffix`.
func prefixLayout(prefix, suffix string) func(slot) slot {
	return func(hole slot) slot {
		return plain(prefix).add(hole).add(plain(suffix))
	}
}

// wholeLayout replaces whatever was rendered below with desc, fully highlighted.
func wholeLayout(desc string) func(slot) slot {
	return func(slot) slot {
		return slot{ty: desc, ind: strings.Repeat("^", utf8.RuneCountInString(desc))}
	}
}

func identityLayout(s slot) slot { return s }

func describeFunc(prefix string, params []string, ret string) string {
	s := prefix + "(" + strings.Join(params, ", ") + ")"
	if ret != "" {
		s += " " + ret
	}
	return s
}
