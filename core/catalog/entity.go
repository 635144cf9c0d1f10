package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// Schedule entity naming. The same physical program can be exposed under two
// naming families depending on the integration version: the legacy family
// lives in the "sensor" domain, the canonical one in the "text" domain. Both
// share the suffix <device>_planning_<family>_prog_<letter>.
const (
	LegacyDomain    = "sensor"
	CanonicalDomain = "text"
)

var entityPattern = regexp.MustCompile(
	`^(?i)(sensor|text)\.([a-z0-9]+)_(.+)_planning_(heating|cooling)_prog_([a-d])$`)

// EntityID is the structured form of a planning entity identifier. Catalog
// operations work over this value; the raw string is parsed exactly once at
// the boundary.
type EntityID struct {
	Domain  string // "sensor" (legacy) or "text" (canonical)
	Prefix  string // integration prefix, e.g. "aldes"
	Device  string // device serial or modem id
	Family  string // "heating" or "cooling"
	Program string // program letter "a".."d", lower case
}

// ParseEntityID parses a raw identifier into its structured form. The raw
// form is matched case-insensitively; the parsed fields are normalized to
// lower case.
func ParseEntityID(raw string) (EntityID, bool) {
	m := entityPattern.FindStringSubmatch(raw)
	if m == nil {
		return EntityID{}, false
	}
	return EntityID{
		Domain:  strings.ToLower(m[1]),
		Prefix:  strings.ToLower(m[2]),
		Device:  strings.ToLower(m[3]),
		Family:  strings.ToLower(m[4]),
		Program: strings.ToLower(m[5]),
	}, true
}

// Suffix returns the device + family + program segment shared by both naming
// families.
func (e EntityID) Suffix() string {
	return fmt.Sprintf("%s_planning_%s_prog_%s", e.Device, e.Family, e.Program)
}

// String renders the identifier back into its raw form.
func (e EntityID) String() string {
	return fmt.Sprintf("%s.%s_%s", e.Domain, e.Prefix, e.Suffix())
}

// IsLegacy reports whether the identifier belongs to the legacy sensor family.
func (e EntityID) IsLegacy() bool { return e.Domain == LegacyDomain }

// Rank orders entities by program letter: a..d map to 0..3 so programs sort
// A, B, C, D. Identifiers without a recognizable program segment rank 99 and
// sort last.
func Rank(raw string) int {
	id, ok := ParseEntityID(raw)
	if !ok {
		return 99
	}
	return int(id.Program[0] - 'a')
}
