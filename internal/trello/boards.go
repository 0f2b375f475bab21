package trello

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// ListOrganizations returns every organization the token's member belongs to.
//
// An empty list is a valid (empty) account. A body that cannot be decoded, or
// whose first entry has no id, is treated as a parse failure.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	orgs, err := getJSON[[]Organization](ctx, c, "members/me/organizations", nil)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	if len(orgs) == 0 {
		c.log.Warn().Msg("account has no organizations")
		return []Organization{}, nil
	}

	if orgs[0].ID == "" {
		return nil, fmt.Errorf("list organizations: %w: entry without id", ErrMalformedResponse)
	}

	c.log.Info().Int("count", len(orgs)).Msg("organizations loaded")
	for _, o := range orgs {
		c.log.Debug().
			Str("org_id", o.ID).
			Str("name", o.DisplayName).
			Int("boards", len(o.BoardIDs)).
			Msg("organization")
	}

	return orgs, nil
}

// FetchBoard loads a single board with all of its lists (open and closed).
func (c *Client) FetchBoard(ctx context.Context, boardID string) (Board, error) {
	board, err := getJSON[Board](ctx, c, "boards/"+url.PathEscape(boardID), url.Values{"lists": {"all"}})
	if err != nil {
		return Board{}, fmt.Errorf("fetch board %s: %w", boardID, err)
	}
	return board, nil
}

// FetchBoards loads every board referenced by orgs. All requests are issued
// up front and collected in submission order; only the rate limiter bounds
// them. Boards that fail to load are omitted.
func (c *Client) FetchBoards(ctx context.Context, orgs []Organization) []Board {
	var ids []string
	for _, o := range orgs {
		ids = append(ids, o.BoardIDs...)
	}

	results := make([]*Board, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			b, err := c.FetchBoard(ctx, id)
			if err != nil {
				c.log.Error().Err(err).Str("board_id", id).Msg("board fetch failed, omitting")
				return nil
			}
			results[i] = &b
			return nil
		})
	}
	_ = g.Wait()

	boards := make([]Board, 0, len(ids))
	for _, b := range results {
		if b != nil {
			boards = append(boards, *b)
		}
	}

	return boards
}

// DownloadBoards loads the full tree for every board the member can see:
// organizations, boards with lists, and cards with comments redistributed
// into their lists.
func (c *Client) DownloadBoards(ctx context.Context) ([]Board, error) {
	orgs, err := c.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}

	boards := c.FetchBoards(ctx, orgs)

	out := make([]Board, 0, len(boards))
	for _, b := range boards {
		cards, err := c.FetchCardsWithComments(ctx, b.ID)
		if err != nil {
			c.log.Error().Err(err).Str("board_id", b.ID).Msg("card fetch failed, keeping board without cards")
			out = append(out, b)
			continue
		}

		assembled, dropped := AssembleBoard(b, cards, c.log)
		if len(dropped) > 0 {
			c.log.Warn().Str("board_id", b.ID).Strs("card_ids", dropped).Msg("cards excluded from board")
		}
		out = append(out, assembled)
	}

	return out, nil
}
