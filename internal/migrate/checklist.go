package migrate

import (
	"github.com/colonyops/tsync/internal/graph"
	"github.com/colonyops/tsync/internal/trello"
)

// FlattenChecklists merges a card's checklists into the single checklist a
// task supports. Items keep their order. With more than one checklist each
// title is prefixed with the name of the checklist it came from.
func FlattenChecklists(lists []trello.Checklist) []graph.ChecklistEntry {
	var out []graph.ChecklistEntry
	prefix := len(lists) > 1

	for _, cl := range lists {
		for _, item := range cl.CheckItems {
			title := item.Name
			if prefix {
				title = cl.Name + " - " + item.Name
			}
			out = append(out, graph.ChecklistEntry{Title: title, Checked: item.Checked()})
		}
	}

	return out
}
