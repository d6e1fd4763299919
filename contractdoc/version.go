package contractdoc

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Version is a contract document format version, MAJOR.MINOR.PATCH.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions by major, then minor, then patch.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, o.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, o.Patch)
}

// ParseVersion parses a document version. All three components are required.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version %q: must be MAJOR.MINOR.PATCH (e.g. %s)", s, SupportedVersions.Min)
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || strings.HasPrefix(p, "+") {
			return Version{}, fmt.Errorf("version %q: component %q is not a non-negative integer", s, p)
		}
		out[i] = n
	}
	return Version{Major: out[0], Minor: out[1], Patch: out[2]}, nil
}

// VersionRange is an inclusive range of document versions. Max bounds major and minor only:
// patch releases never change the document shape, so every patch of Max's minor is accepted.
type VersionRange struct {
	Min, Max Version
}

// Contains reports whether v falls within the range.
func (r VersionRange) Contains(v Version) bool {
	if v.Compare(r.Min) < 0 {
		return false
	}
	ceil := Version{Major: r.Max.Major, Minor: r.Max.Minor}
	return Version{Major: v.Major, Minor: v.Minor}.Compare(ceil) <= 0
}

func (r VersionRange) String() string {
	return fmt.Sprintf("%s-%d.%d.x", r.Min, r.Max.Major, r.Max.Minor)
}

// SupportedVersions are the document versions this package reads.
var SupportedVersions = VersionRange{
	Min: Version{Major: 0, Minor: 1},
	Max: Version{Major: 0, Minor: 1},
}

// versionProblem returns the validation problem for a document's version field, or "" when
// there is none.
func versionProblem(raw string, requireSupported bool) string {
	if strings.TrimSpace(raw) == "" {
		return "version: required"
	}
	v, err := ParseVersion(raw)
	if err != nil {
		return "version: must be MAJOR.MINOR.PATCH (e.g. " + SupportedVersions.Min.String() + ")"
	}
	if requireSupported && !SupportedVersions.Contains(v) {
		return fmt.Sprintf("version: unsupported version %s (supported %s)", v, SupportedVersions)
	}
	return ""
}
