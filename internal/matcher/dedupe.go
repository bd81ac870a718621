package matcher

import (
	"strings"

	"github.com/sells-group/fmv-cli/internal/model"
)

type dedupeKey struct {
	kind model.ListingKind
	id   string
}

// Deduper drops repeated listings for one item across result pages and
// re-crawls. Listings are keyed by kind plus URL, or lowercased title when
// the URL is blank. Not safe for concurrent use.
type Deduper struct {
	seen map[dedupeKey]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[dedupeKey]struct{})}
}

// Add records the listing and reports whether it was new.
func (d *Deduper) Add(kind model.ListingKind, url, title string) bool {
	id := strings.TrimSpace(url)
	if id == "" {
		id = Normalize(title)
	}
	k := dedupeKey{kind: kind, id: id}
	if _, ok := d.seen[k]; ok {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// Len returns the number of distinct listings seen.
func (d *Deduper) Len() int {
	return len(d.seen)
}
