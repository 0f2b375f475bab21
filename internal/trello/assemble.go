package trello

import "github.com/rs/zerolog"

// AssembleBoard distributes a flat card list into the board's lists by each
// card's list id, preserving the order of both. Cards that reference a list
// not present on the board are logged and left out; their ids are returned.
//
// Any cards already attached to the board's lists are replaced.
func AssembleBoard(board Board, cards []Card, log zerolog.Logger) (Board, []string) {
	index := make(map[string]int, len(board.Lists))
	lists := make([]List, len(board.Lists))
	for i, l := range board.Lists {
		index[l.ID] = i
		l.Cards = []Card{}
		lists[i] = l
	}

	var dropped []string
	for _, card := range cards {
		i, ok := index[card.ListID]
		if !ok {
			log.Error().
				Str("board_id", board.ID).
				Str("card_id", card.ID).
				Str("list_id", card.ListID).
				Msg("card references a list that is not on its board")
			dropped = append(dropped, card.ID)
			continue
		}
		lists[i].Cards = append(lists[i].Cards, card)
	}

	board.Lists = lists
	return board, dropped
}
