package schema

import (
	"fmt"
	"strings"
)

// LooksHeaderless reports whether the first row of a source is data rather than headers:
// true when no cell, once normalized, equals one of the normalized keywords. A cell that
// merely contains a keyword ("University of Nairobi") does not count. An empty keyword
// list never reports headerless.
func LooksHeaderless(firstRow []string, keywords []string) bool {
	known := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		if k := Normalize(kw); k != "" {
			known[k] = struct{}{}
		}
	}
	if len(known) == 0 {
		return false
	}
	for _, cell := range firstRow {
		if _, ok := known[Normalize(cell)]; ok {
			return false
		}
	}
	return true
}

// PositionalHeaders assigns names to n headerless columns. Predefined names are used in
// order; extra columns receive sequential synthetic names ("Column17", ...), and surplus
// predefined names are dropped.
func PositionalHeaders(n int, names []string) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(names) {
			out[i] = names[i]
			continue
		}
		out[i] = fmt.Sprintf("Column%d", i+1)
	}
	return out
}

// SyntheticHeaders fills blank or duplicate header cells so every column has a unique name.
func SyntheticHeaders(headers []string) []string {
	out := make([]string, len(headers))
	seen := map[string]int{}
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column%d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n)
		} else {
			seen[h] = 1
		}
		out[i] = h
	}
	return out
}
