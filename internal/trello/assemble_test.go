package trello

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatten(b Board) []Card {
	var cards []Card
	for _, l := range b.Lists {
		cards = append(cards, l.Cards...)
	}
	return cards
}

func TestAssembleBoard_Conservation(t *testing.T) {
	tests := []struct {
		name  string
		lists int
		cards int
	}{
		{"empty board", 0, 0},
		{"lists without cards", 3, 0},
		{"one list", 1, 5},
		{"many lists", 4, 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := Board{ID: "b", Lists: []List{}}
			for i := range tt.lists {
				original.Lists = append(original.Lists, List{ID: fmt.Sprintf("l%d", i), Cards: []Card{}})
			}
			for i := range tt.cards {
				li := i % tt.lists
				original.Lists[li].Cards = append(original.Lists[li].Cards, Card{
					ID:     fmt.Sprintf("c%d", i),
					ListID: original.Lists[li].ID,
				})
			}

			got, dropped := AssembleBoard(original, flatten(original), zerolog.Nop())

			assert.Empty(t, dropped)
			assert.Equal(t, original, got)
		})
	}
}

func TestAssembleBoard_UnknownListIsExcluded(t *testing.T) {
	board := Board{
		ID:    "b",
		Lists: []List{{ID: "l1"}, {ID: "l2"}},
	}
	cards := []Card{
		{ID: "c1", ListID: "l2"},
		{ID: "c2", ListID: "gone"},
		{ID: "c3", ListID: "l1"},
		{ID: "c4", ListID: "l2"},
	}

	got, dropped := AssembleBoard(board, cards, zerolog.Nop())

	assert.Equal(t, []string{"c2"}, dropped)
	require.Len(t, got.Lists, 2)
	assert.Equal(t, []Card{{ID: "c3", ListID: "l1"}}, got.Lists[0].Cards)
	assert.Equal(t, []Card{{ID: "c1", ListID: "l2"}, {ID: "c4", ListID: "l2"}}, got.Lists[1].Cards)
	assert.Len(t, flatten(got), 3)
}

func TestAssembleBoard_DoesNotMutateInput(t *testing.T) {
	board := Board{ID: "b", Lists: []List{{ID: "l1", Cards: []Card{{ID: "old", ListID: "l1"}}}}}

	got, _ := AssembleBoard(board, []Card{{ID: "new", ListID: "l1"}}, zerolog.Nop())

	assert.Equal(t, "old", board.Lists[0].Cards[0].ID)
	assert.Equal(t, "new", got.Lists[0].Cards[0].ID)
}
