package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
)

// Field declares a canonical semantic role and the header spellings that may carry it.
type Field struct {
	Name     string       `yaml:"name"`
	Aliases  []string     `yaml:"aliases"`
	Required bool         `yaml:"required"`
	Kind     dataset.Kind `yaml:"kind"`
}

// Candidates returns the spellings tried for f, canonical name first.
func (f Field) Candidates() []string {
	out := make([]string, 0, len(f.Aliases)+1)
	out = append(out, f.Name)
	return append(out, f.Aliases...)
}

// Binding maps canonical field names to the actual header they were resolved to.
// Unbound optional fields are absent.
type Binding map[string]string

// Bound reports whether the canonical field was resolved.
func (b Binding) Bound(field string) bool {
	_, ok := b[field]
	return ok
}

// Renames returns the actual → canonical mapping used to rename dataset columns.
func (b Binding) Renames() map[string]string {
	out := make(map[string]string, len(b))
	for canonical, actual := range b {
		out[actual] = canonical
	}
	return out
}

// Fields lists bound canonical names in sorted order.
func (b Binding) Fields() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize lower-cases s and drops every rune that is not an ASCII letter or digit,
// so "GPA ", "gpa" and "G.P.A." all compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Resolve binds each field to at most one header. For every field the candidates are tried
// in priority order; the first header whose normalized form matches and that no earlier
// field already claimed wins. Unresolved required fields yield a *MismatchError.
func Resolve(headers []string, fields []Field) (Binding, error) {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = Normalize(h)
	}
	claimed := make([]bool, len(headers))
	b := Binding{}
	var missing []string
	for _, f := range fields {
		idx := -1
		for _, cand := range f.Candidates() {
			key := Normalize(cand)
			if key == "" {
				continue
			}
			for i, n := range norm {
				if !claimed[i] && n == key {
					idx = i
					break
				}
			}
			if idx >= 0 {
				break
			}
		}
		if idx < 0 {
			if f.Required {
				missing = append(missing, f.Name)
			}
			continue
		}
		claimed[idx] = true
		b[f.Name] = headers[idx]
	}
	if len(missing) > 0 {
		detected := make([]string, len(headers))
		copy(detected, headers)
		return nil, &MismatchError{Missing: missing, Detected: detected}
	}
	return b, nil
}

// MismatchError reports required canonical fields that no header could satisfy.
type MismatchError struct {
	Missing  []string
	Detected []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: missing required columns [%s]; detected columns [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Detected, ", "))
}
