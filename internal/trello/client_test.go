package trello_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/tsync/internal/ratelimit"
	"github.com/colonyops/tsync/internal/trello"
	"github.com/colonyops/tsync/internal/trello/trellotest"
)

func newClient(t *testing.T, srv *trellotest.Server) *trello.Client {
	t.Helper()

	c, err := trello.New(trello.Options{
		BaseURL: srv.BaseURL(),
		APIKey:  trellotest.Key,
		Token:   trellotest.Token,
		Limiter: ratelimit.New("trello", 1000, time.Second),
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func sampleBoard(id string) trello.Board {
	return trello.Board{
		ID:   id,
		Name: "Board " + id,
		Lists: []trello.List{
			{ID: id + "-l1", Name: "Todo", Cards: []trello.Card{
				{ID: id + "-c1", Name: "first"},
				{ID: id + "-c2", Name: "second"},
			}},
			{ID: id + "-l2", Name: "Done", Closed: true, Cards: []trello.Card{
				{ID: id + "-c3", Name: "third"},
			}},
		},
	}
}

func TestListOrganizations(t *testing.T) {
	ctx := context.Background()

	t.Run("returns organizations", func(t *testing.T) {
		srv := trellotest.New(t)
		srv.AddOrganization("o1", "Acme")
		srv.AddBoard("o1", sampleBoard("b1"))

		orgs, err := newClient(t, srv).ListOrganizations(ctx)
		require.NoError(t, err)
		require.Len(t, orgs, 1)
		assert.Equal(t, "Acme", orgs[0].DisplayName)
		assert.Equal(t, []string{"b1"}, orgs[0].BoardIDs)
	})

	t.Run("empty account is not an error", func(t *testing.T) {
		srv := trellotest.New(t)

		orgs, err := newClient(t, srv).ListOrganizations(ctx)
		require.NoError(t, err)
		assert.Empty(t, orgs)
	})

	t.Run("entry without id is malformed", func(t *testing.T) {
		srv := trellotest.New(t)
		srv.Override(trellotest.RouteOrganizations, http.StatusOK, `[{"displayName":"ghost"}]`)

		_, err := newClient(t, srv).ListOrganizations(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, trello.ErrMalformedResponse)
	})

	t.Run("undecodable body fails", func(t *testing.T) {
		srv := trellotest.New(t)
		srv.Override(trellotest.RouteOrganizations, http.StatusOK, `{"not":"a list"}`)

		_, err := newClient(t, srv).ListOrganizations(ctx)
		require.Error(t, err)
	})

	t.Run("server error carries body", func(t *testing.T) {
		srv := trellotest.New(t)
		srv.Override(trellotest.RouteOrganizations, http.StatusUnauthorized, "invalid token")

		_, err := newClient(t, srv).ListOrganizations(ctx)

		var apiErr *trello.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid token", apiErr.Body)
	})
}

func TestFetchBoards_OmitsFailuresAndKeepsOrder(t *testing.T) {
	srv := trellotest.New(t)
	srv.AddOrganization("o1", "Acme")
	srv.AddOrganization("o2", "Globex")
	srv.AddBoard("o1", sampleBoard("b1"))
	srv.AddBoard("o1", sampleBoard("b2"))
	srv.AddBoard("o2", sampleBoard("b3"))
	srv.Fail(trellotest.RouteBoard, "b2")

	c := newClient(t, srv)
	orgs, err := c.ListOrganizations(context.Background())
	require.NoError(t, err)

	boards := c.FetchBoards(context.Background(), orgs)
	require.Len(t, boards, 2)
	assert.Equal(t, "b1", boards[0].ID)
	assert.Equal(t, "b3", boards[1].ID)
	assert.Len(t, boards[0].Lists, 2)
	assert.Equal(t, 3, srv.Requests(trellotest.RouteBoard))
}

func TestFetchCardsWithComments(t *testing.T) {
	srv := trellotest.New(t)
	srv.AddOrganization("o1", "Acme")

	b := sampleBoard("b1")
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	b.Lists[0].Cards[0].Comments = []trello.Comment{
		{ID: "a1", Date: at, Data: trello.CommentData{Text: "one"}},
		{ID: "a2", Date: at.Add(time.Hour), Data: trello.CommentData{Text: "two"}},
	}
	b.Lists[0].Cards[1].Comments = []trello.Comment{
		{ID: "a3", Date: at, Data: trello.CommentData{Text: "lost"}},
	}
	srv.AddBoard("o1", b)
	srv.Fail(trellotest.RouteComments, "b1-c2")

	cards, err := newClient(t, srv).FetchCardsWithComments(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, cards, 3)

	byID := map[string]trello.Card{}
	for _, c := range cards {
		byID[c.ID] = c
	}

	// Comments come back in the order they were written.
	require.Len(t, byID["b1-c1"].Comments, 2)
	assert.Equal(t, "one", byID["b1-c1"].Comments[0].Data.Text)
	assert.Equal(t, "two", byID["b1-c1"].Comments[1].Data.Text)

	// A failed comment fetch keeps the card.
	assert.Equal(t, "second", byID["b1-c2"].Name)
	assert.Empty(t, byID["b1-c2"].Comments)

	assert.Equal(t, 3, srv.Requests(trellotest.RouteComments))
}

func TestFetchComments_MoreThanOnePage(t *testing.T) {
	srv := trellotest.New(t)
	srv.AddOrganization("o1", "Acme")

	b := sampleBoard("b1")
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := range 60 {
		b.Lists[0].Cards[0].Comments = append(b.Lists[0].Cards[0].Comments, trello.Comment{
			ID:   fmt.Sprintf("a%d", i),
			Date: at.Add(time.Duration(i) * time.Minute),
			Data: trello.CommentData{Text: fmt.Sprintf("comment %d", i)},
		})
	}
	srv.AddBoard("o1", b)

	comments, err := newClient(t, srv).FetchComments(context.Background(), "b1-c1")
	require.NoError(t, err)
	require.Len(t, comments, 60)
	assert.Equal(t, "comment 0", comments[0].Data.Text)
	assert.Equal(t, "comment 59", comments[59].Data.Text)
	assert.Equal(t, 1, srv.Requests(trellotest.RouteComments))
}

func TestFetchCardsWithComments_CardFetchFails(t *testing.T) {
	srv := trellotest.New(t)
	srv.AddOrganization("o1", "Acme")
	srv.AddBoard("o1", sampleBoard("b1"))
	srv.Fail(trellotest.RouteCards, "b1")

	_, err := newClient(t, srv).FetchCardsWithComments(context.Background(), "b1")
	require.Error(t, err)
	assert.Equal(t, 0, srv.Requests(trellotest.RouteComments))
}

func TestDownloadBoards(t *testing.T) {
	srv := trellotest.New(t)
	srv.AddOrganization("o1", "Acme")
	srv.AddBoard("o1", sampleBoard("b1"))
	srv.AddCard("b1", trello.Card{ID: "stray", ListID: "missing"})

	boards, err := newClient(t, srv).DownloadBoards(context.Background())
	require.NoError(t, err)
	require.Len(t, boards, 1)

	b := boards[0]
	require.Len(t, b.Lists, 2)
	assert.Len(t, b.Lists[0].Cards, 2)
	assert.Len(t, b.Lists[1].Cards, 1)

	stats := trello.Stats(boards)
	assert.Equal(t, 3, stats.Cards, "stray card must not be counted")
}

func TestDownload(t *testing.T) {
	srv := trellotest.New(t)
	srv.AddFile("att1", []byte("0123456789"))
	c := newClient(t, srv)

	t.Run("streams bytes", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, c.Download(context.Background(), srv.AttachmentURL("c1", "att1", "a.txt"), &buf))
		assert.Equal(t, "0123456789", buf.String())
	})

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		err := c.Download(context.Background(), srv.AttachmentURL("c1", "nope", "a.txt"), &buf)

		var apiErr *trello.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})

	t.Run("bad credentials", func(t *testing.T) {
		bad, err := trello.New(trello.Options{BaseURL: srv.BaseURL(), APIKey: "x", Token: "y"}, zerolog.Nop())
		require.NoError(t, err)

		var buf bytes.Buffer
		err = bad.Download(context.Background(), srv.AttachmentURL("c1", "att1", "a.txt"), &buf)
		require.Error(t, err)
		assert.Zero(t, buf.Len())
	})
}
