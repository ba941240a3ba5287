package notes

import (
	"sort"
	"strings"
)

// DisplayList derives the ordered list of notes to render for the given user
// and search term. It is a pure function of its inputs: the collection is
// never mutated and unchanged inputs yield identical output.
//
// Notes whose owner does not exactly match currentUser are excluded, as are
// notes with no owner at all. That hides legacy unowned notes, which is the
// safer failure mode than leaking them across users.
func DisplayList(collection []Note, currentUser UserID, searchTerm string) []Note {
	term := strings.ToLower(searchTerm)
	user := currentUser.String()

	display := make([]Note, 0, len(collection))
	for _, note := range collection {
		if note.Owner == "" || note.Owner != user {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(note.Title), term) &&
			!strings.Contains(strings.ToLower(note.Content), term) {
			continue
		}
		display = append(display, note)
	}

	// Pinned notes first, then newest first. Ids are time-prefixed, so
	// descending id order approximates recency; ties keep insertion order.
	sort.SliceStable(display, func(i, j int) bool {
		if display[i].Pinned != display[j].Pinned {
			return display[i].Pinned
		}
		return display[i].ID > display[j].ID
	})

	return display
}
