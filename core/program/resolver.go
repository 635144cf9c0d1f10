// Package program infers which program slot (A-D) a schedule entity refers
// to. The cloud command replacing a weekly planning is slot-addressed, so
// every submission must carry the right letter even when the entity
// identifier does not encode it.
package program

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lmichel/tonectl/core/catalog"
)

// Default is the program slot assumed when neither the identifier nor the
// title reveals one.
const Default = "A"

var standaloneLetter = regexp.MustCompile(`\b([A-Da-d])\b`)

// Infer resolves the program letter for an entity. Sources, in order: the
// program segment of the identifier, a standalone A-D word in the title, the
// French phrases "planning x" / "programme x" in the lower-cased title, and
// finally Default.
func Infer(entityID, title string) string {
	if id, ok := catalog.ParseEntityID(entityID); ok {
		return strings.ToUpper(id.Program)
	}

	if m := standaloneLetter.FindStringSubmatch(title); m != nil {
		return strings.ToUpper(m[1])
	}

	lower := strings.ToLower(title)
	for _, letter := range []string{"a", "b", "c", "d"} {
		if strings.Contains(lower, fmt.Sprintf("planning %s", letter)) ||
			strings.Contains(lower, fmt.Sprintf("programme %s", letter)) {
			return strings.ToUpper(letter)
		}
	}
	return Default
}
