package defmodel

import "strings"

// SubmodelFilter restricts which submodels of a model get loaded. It is
// built from the "name+name+..." / "-name+name+..." syntax accepted by
// OpenOptions.SubmodelFilter: a leading "-" negates the match, and the
// remainder is a "+"-joined, case-insensitive list of tokens. A token matches
// a submodel either by exact name or as the suffix following "patch_" on a
// patch submodel's name (spec §4.10), so "c1" also selects a submodel
// literally named "patch_c1_20100904".
type SubmodelFilter struct {
	exclude bool
	names   map[string]bool
}

// ParseSubmodelFilter parses s into a SubmodelFilter. An empty string matches
// every submodel.
func ParseSubmodelFilter(s string) SubmodelFilter {
	if s == "" {
		return SubmodelFilter{}
	}
	exclude := false
	if strings.HasPrefix(s, "-") {
		exclude = true
		s = s[1:]
	}
	names := make(map[string]bool)
	for _, tok := range strings.Split(s, "+") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			names[tok] = true
		}
	}
	return SubmodelFilter{exclude: exclude, names: names}
}

// Matches reports whether the submodel named name should be loaded.
func (f SubmodelFilter) Matches(name string) bool {
	if len(f.names) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	listed := false
	for tok := range f.names {
		if lower == tok || strings.HasPrefix(lower, "patch_"+tok) {
			listed = true
			break
		}
	}
	if f.exclude {
		return !listed
	}
	return listed
}
