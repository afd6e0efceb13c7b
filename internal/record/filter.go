package record

import (
	"time"

	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/pathutil"
)

// Select returns the entries matched by sel, keeping the input order.
// entries are expected newest first, so Latest is the first entry and
// repeated burials of one original come back in LIFO order.
func Select(entries []*model.GraveyardEntry, sel model.Selector, now time.Time) []*model.GraveyardEntry {
	var out []*model.GraveyardEntry
	switch sel.Kind {
	case model.SelectLatest:
		if len(entries) > 0 {
			out = append(out, entries[0])
		}
	case model.SelectAll:
		out = append(out, entries...)
	case model.SelectOriginal:
		for _, e := range entries {
			if pathutil.Equal(string(e.Original), sel.Path) {
				out = append(out, e)
			}
		}
	case model.SelectGrave:
		for _, e := range entries {
			if pathutil.Equal(e.Grave, sel.Path) {
				out = append(out, e)
			}
		}
	case model.SelectUnder:
		dir := pathutil.NormalizeSelector(sel.Path)
		for _, e := range entries {
			if pathutil.Within(dir, pathutil.NormalizeSelector(string(e.Original))) {
				out = append(out, e)
			}
		}
	case model.SelectOlderThan:
		cutoff := now.Add(-sel.Age)
		for _, e := range entries {
			if e.BuriedAt.Before(cutoff) {
				out = append(out, e)
			}
		}
	}
	return out
}
