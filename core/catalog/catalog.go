package catalog

import (
	"sort"
	"strings"
)

// Discover filters the full set of live identifiers down to planning entities
// of either naming family and returns them lexicographically sorted. It is
// used when no identifier is configured explicitly.
func Discover(live []string) []string {
	var found []string
	for _, raw := range live {
		if _, ok := ParseEntityID(raw); ok {
			found = append(found, raw)
		}
	}
	sort.Strings(found)
	return found
}

// Resolve maps a configured identifier to a live one. Preference order:
// exact match, structural equivalent in the canonical family, any canonical
// identifier sharing the suffix. When nothing matches the configured
// identifier is returned unchanged; the caller treats a non-live identifier
// as "not found", never as a fault.
func Resolve(configured string, live []string) string {
	for _, l := range live {
		if l == configured {
			return configured
		}
	}

	id, ok := ParseEntityID(configured)
	if !ok || !id.IsLegacy() {
		return configured
	}

	// The canonical equivalent keeps the suffix and swaps the domain.
	alt := id
	alt.Domain = CanonicalDomain
	altRaw := alt.String()
	for _, l := range live {
		if strings.EqualFold(l, altRaw) {
			return l
		}
	}

	// Integration prefixes differ between versions, so fall back to any
	// canonical entity ending with the same suffix.
	tail := "_" + id.Suffix()
	for _, l := range live {
		ll := strings.ToLower(l)
		if strings.HasPrefix(ll, CanonicalDomain+".") && strings.HasSuffix(ll, tail) {
			return l
		}
	}
	return configured
}

// Sort orders identifiers by rank ascending, then lexicographically. For
// well-formed identifiers this yields deterministic A, B, C, D ordering;
// unrankable identifiers land at the end in a stable order.
func Sort(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		ri, rj := Rank(ids[i]), Rank(ids[j])
		if ri != rj {
			return ri < rj
		}
		return ids[i] < ids[j]
	})
}

// Selection tracks the single currently selected identifier among resolved
// candidates. It persists across recomputation until its identifier drops out
// of the candidate set.
type Selection struct {
	current string
}

// Current returns the selected identifier, or "" when nothing is selected.
func (s *Selection) Current() string { return s.current }

// Select sets the current identifier explicitly.
func (s *Selection) Select(id string) { s.current = id }

// Revalidate keeps the current selection if it is still among the candidates,
// otherwise resets it to the first candidate in Sort order. It returns the
// resulting selection ("" when there are no candidates at all).
func (s *Selection) Revalidate(candidates []string) string {
	for _, c := range candidates {
		if c == s.current {
			return s.current
		}
	}
	if len(candidates) == 0 {
		s.current = ""
		return ""
	}
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	Sort(sorted)
	s.current = sorted[0]
	return s.current
}
