package pipeline

import (
	"sort"
	"strings"

	"leadpipe/internal/lead"
)

// SortSnapshot orders a snapshot newest-first by creation time, in place.
// Records without a creation time sort as the epoch and so land at the end.
// The sort is stable, so equal timestamps keep their store order and repeated
// sorts of equivalent snapshots agree.
func SortSnapshot(snapshot []lead.Lead) {
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].CreatedAt.After(snapshot[j].CreatedAt)
	})
}

// FilterSnapshot returns the leads matching a free-text term. Matching is a
// case-insensitive substring test over name, company, notes, and whatever
// contact details the snapshot actually holds. A blank term matches
// everything.
func FilterSnapshot(snapshot []lead.Lead, term string) []lead.Lead {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return snapshot
	}
	out := make([]lead.Lead, 0, len(snapshot))
	for _, l := range snapshot {
		if matches(l, term) {
			out = append(out, l)
		}
	}
	return out
}

func matches(l lead.Lead, term string) bool {
	for _, field := range []string{l.Name, l.Company, l.Notes} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	for _, field := range []*string{l.Email, l.Phone} {
		if field != nil && strings.Contains(strings.ToLower(*field), term) {
			return true
		}
	}
	return false
}
