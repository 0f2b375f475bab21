package trello

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// FetchCards loads every card on a board (open and archived) with
// attachments and checklists inlined.
func (c *Client) FetchCards(ctx context.Context, boardID string) ([]Card, error) {
	params := url.Values{
		"attachments": {"true"},
		"checklists":  {"all"},
	}

	cards, err := getJSON[[]Card](ctx, c, "boards/"+url.PathEscape(boardID)+"/cards/all", params)
	if err != nil {
		return nil, fmt.Errorf("fetch cards for board %s: %w", boardID, err)
	}

	return cards, nil
}

// MaxCommentActions is the largest page Trello serves from the card actions
// endpoint. Without an explicit limit it returns only 50.
const MaxCommentActions = 1000

// FetchComments loads the comment actions of a card in the order they were
// written. Trello returns actions newest first.
func (c *Client) FetchComments(ctx context.Context, cardID string) ([]Comment, error) {
	comments, err := getJSON[[]Comment](ctx, c, "cards/"+url.PathEscape(cardID)+"/actions",
		url.Values{
			"filter": {"commentCard"},
			"limit":  {strconv.Itoa(MaxCommentActions)},
		})
	if err != nil {
		return nil, fmt.Errorf("fetch comments for card %s: %w", cardID, err)
	}

	if len(comments) >= MaxCommentActions {
		c.log.Warn().Str("card_id", cardID).Int("comments", len(comments)).
			Msg("comment limit reached, older comments are not migrated")
	}

	slices.Reverse(comments)
	return comments, nil
}

// FetchCardsWithComments loads a board's cards and then the comments of every
// card concurrently. A card whose comment fetch fails is kept without comments.
func (c *Client) FetchCardsWithComments(ctx context.Context, boardID string) ([]Card, error) {
	cards, err := c.FetchCards(ctx, boardID)
	if err != nil {
		return nil, err
	}

	comments := make([][]Comment, len(cards))

	var g errgroup.Group
	for i, card := range cards {
		g.Go(func() error {
			cs, err := c.FetchComments(ctx, card.ID)
			if err != nil {
				c.log.Warn().Err(err).Str("card_id", card.ID).Msg("comment fetch failed, keeping card without comments")
				return nil
			}
			comments[i] = cs
			return nil
		})
	}
	_ = g.Wait()

	for i := range cards {
		if comments[i] != nil {
			cards[i].Comments = comments[i]
		}
	}

	return cards, nil
}
