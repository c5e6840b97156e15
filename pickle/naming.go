package pickle

import (
	"fmt"
	"sort"

	"github.com/robert-malhotra/go-h5pickle/store"
)

// Generated child names are zero-padded so lexicographic iteration order
// matches insertion order; positional collections rely on this to
// reconstruct in the original order.
const autoNameFormat = "entry_%08d"

// nextName returns a child name guaranteed absent among parent's current
// children. The positional counter is scoped to the parent and skips any
// name already taken, including caller-supplied ones that happen to look
// generated.
func nextName(parent *store.Group) string {
	for i := parent.NumObjects(); ; i++ {
		name := fmt.Sprintf(autoNameFormat, i)
		if !parent.Exists(name) {
			return name
		}
	}
}

func sortStrings(s []string) {
	sort.Strings(s)
}
