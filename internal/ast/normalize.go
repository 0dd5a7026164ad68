package ast

import (
	"sort"
	"strings"
)

// NormalizeEvent is the single canonicalization routine for comma-list event
// names: split on ',', trim each part, sort lexicographically, rejoin with
// ','. Both the analyzer's uniqueness checks and the json generator use this
// one routine, per §9's "normalization as canonicalization" design note.
func NormalizeEvent(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
