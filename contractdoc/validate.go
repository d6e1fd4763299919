package contractdoc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/openbindings/contracts-go"
)

type validateOptions struct {
	rejectUnknownFields     bool
	requireSupportedVersion bool
}

// ValidateOption configures Document.Validate.
type ValidateOption func(*validateOptions)

// WithRejectUnknownFields treats unknown (non-"x-") keys as errors.
func WithRejectUnknownFields() ValidateOption {
	return func(o *validateOptions) { o.rejectUnknownFields = true }
}

// WithRequireSupportedVersion requires the document version to be within SupportedVersions.
func WithRequireSupportedVersion() ValidateOption {
	return func(o *validateOptions) { o.requireSupportedVersion = true }
}

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Validate checks document shape. Type expressions are only checked for presence; Build
// reports expression errors.
func (d *Document) Validate(opts ...ValidateOption) error {
	var o validateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var errs []string

	if p := versionProblem(d.Version, o.requireSupportedVersion); p != "" {
		errs = append(errs, p)
	}

	for _, k := range sortedKeys(d.Types) {
		t := d.Types[k]
		prefix := fmt.Sprintf("types[%q]", k)
		if !nameRe.MatchString(k) {
			errs = append(errs, prefix+": invalid name")
		}
		if _, dup := d.Contracts[k]; dup {
			errs = append(errs, prefix+": also declared under contracts")
		}
		appendLocationProblem(&errs, prefix, t.Declared)
		if len(t.Methods) == 0 {
			errs = append(errs, prefix+".methods: required")
		}
		for _, m := range sortedKeys(t.Methods) {
			if strings.TrimSpace(t.Methods[m]) == "" {
				errs = append(errs, fmt.Sprintf("%s.methods[%q]: must be non-empty", prefix, m))
			}
		}
		seen := map[string]struct{}{}
		for i, p := range t.Params {
			pp := fmt.Sprintf("%s.params[%d]", prefix, i)
			if !nameRe.MatchString(p.Name) {
				errs = append(errs, pp+".name: invalid name")
				continue
			}
			if _, ok := seen[p.Name]; ok {
				errs = append(errs, fmt.Sprintf("%s.name: duplicate parameter %q", pp, p.Name))
			}
			seen[p.Name] = struct{}{}
			if p.Bound != "" && len(p.Constraints) > 0 {
				errs = append(errs, pp+": cannot have both bound and oneOf")
			}
		}
		if o.rejectUnknownFields {
			appendUnknownFieldProblems(&errs, prefix, t.Unknown)
		}
	}

	for _, k := range sortedKeys(d.Contracts) {
		c := d.Contracts[k]
		prefix := fmt.Sprintf("contracts[%q]", k)
		if !nameRe.MatchString(k) {
			errs = append(errs, prefix+": invalid name")
		}
		appendLocationProblem(&errs, prefix, c.Declared)
		if strings.TrimSpace(c.Type) == "" {
			errs = append(errs, prefix+".type: required")
		}
		if c.Members != nil && len(c.Members) == 0 {
			errs = append(errs, prefix+".members: must not be empty")
		}
		if o.rejectUnknownFields {
			appendUnknownFieldProblems(&errs, prefix, c.Unknown)
		}
	}

	if o.rejectUnknownFields {
		appendUnknownFieldProblems(&errs, "", d.Unknown)
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Problems: errs}
}

func appendLocationProblem(errs *[]string, prefix, declared string) {
	if declared == "" {
		return
	}
	if _, err := contracts.ParseLocation(declared); err != nil {
		*errs = append(*errs, fmt.Sprintf("%s.declared: %v", prefix, err))
	}
}

func appendUnknownFieldProblems(errs *[]string, prefix string, unknown map[string]any) {
	if len(unknown) == 0 {
		return
	}
	keys := sortedKeys(unknown)
	if prefix == "" {
		*errs = append(*errs, fmt.Sprintf("unknown fields: %s", strings.Join(keys, ", ")))
		return
	}
	*errs = append(*errs, fmt.Sprintf("%s: unknown fields: %s", prefix, strings.Join(keys, ", ")))
}

// ValidationError is a deterministic, multi-problem validation error.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid contract document"
	}
	return "invalid contract document: " + strings.Join(e.Problems, "; ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
