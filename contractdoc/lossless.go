package contractdoc

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LosslessFields preserves document keys the typed view does not model. Extensions holds keys
// starting with "x-"; Unknown holds everything else.
type LosslessFields struct {
	Extensions map[string]any `yaml:"-"`
	Unknown    map[string]any `yaml:"-"`
}

// splitLossless decodes the mapping n and separates keys outside known into extensions and unknown.
func splitLossless(n *yaml.Node, known map[string]struct{}) (extensions, unknown map[string]any, err error) {
	var raw map[string]any
	if err := n.Decode(&raw); err != nil {
		return nil, nil, err
	}
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if strings.HasPrefix(k, "x-") {
			if extensions == nil {
				extensions = map[string]any{}
			}
			extensions[k] = v
			continue
		}
		if unknown == nil {
			unknown = map[string]any{}
		}
		unknown[k] = v
	}
	return extensions, unknown, nil
}

func knownSet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// marshalLossless encodes typed and appends the preserved keys it does not already carry.
// Known fields win; preserved keys follow in sorted order.
func marshalLossless(lf LosslessFields, typed any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(typed); err != nil {
		return nil, err
	}
	if n.Kind != yaml.MappingNode {
		return &n, nil
	}
	present := map[string]struct{}{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		present[n.Content[i].Value] = struct{}{}
	}
	extra := map[string]any{}
	for k, v := range lf.Unknown {
		extra[k] = v
	}
	for k, v := range lf.Extensions {
		extra[k] = v
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if _, ok := present[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var kn, vn yaml.Node
		if err := kn.Encode(k); err != nil {
			return nil, err
		}
		if err := vn.Encode(extra[k]); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &kn, &vn)
	}
	return &n, nil
}
