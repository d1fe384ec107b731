// ABOUTME: Catalog filtering and fuzzy search
// ABOUTME: Substring filters by gender, pitch and text, with fuzzy name suggestions
package catalog

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Any matches every value of a filter field
const Any = "Semua"

// Filter narrows the catalog
type Filter struct {
	Gender string
	Pitch  string
	Search string
}

func anyValue(s string) bool {
	return s == "" || s == Any || strings.EqualFold(s, "all")
}

// Match reports whether v passes the filter
func (f Filter) Match(v Voice) bool {
	if !anyValue(f.Gender) && v.Analysis.Gender != f.Gender {
		return false
	}
	if !anyValue(f.Pitch) && v.Analysis.Pitch != f.Pitch {
		return false
	}
	if f.Search == "" {
		return true
	}

	q := strings.ToLower(f.Search)
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), q) }
	anyContains := func(list []string) bool {
		for _, s := range list {
			if contains(s) {
				return true
			}
		}
		return false
	}

	return contains(v.Name) ||
		anyContains(v.Characteristics) ||
		anyContains(v.Analysis.Characteristics) ||
		strings.HasPrefix(strings.ToLower(v.Analysis.Gender), q) ||
		contains(v.Pitch) ||
		contains(v.Analysis.Pitch)
}

// Apply returns the catalog voices that pass the filter
func (f Filter) Apply() []Voice {
	var out []Voice
	for _, v := range load() {
		if f.Match(v) {
			out = append(out, v)
		}
	}
	return out
}

// Resolve maps names to catalog voices, dropping unknown names and
// duplicates. When nothing resolves the whole catalog is returned.
func Resolve(names []string) []Voice {
	var out []Voice
	seen := make(map[string]bool)
	for _, name := range names {
		v, ok := Lookup(name)
		if !ok || seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return All()
	}
	return out
}

type nameSource []Voice

func (s nameSource) String(i int) string { return s[i].Name }
func (s nameSource) Len() int            { return len(s) }

// Suggest fuzzy-matches query against voice names, best first
func Suggest(query string, limit int) []Voice {
	voices := load()
	matches := fuzzy.FindFrom(query, nameSource(voices))

	var out []Voice
	for _, m := range matches {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, voices[m.Index])
	}
	return out
}
