// Package trellotest provides an in-memory Trello API for tests.
package trellotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/colonyops/tsync/internal/trello"
)

// Route names used by Requests and Override.
const (
	RouteOrganizations = "organizations"
	RouteBoard         = "board"
	RouteCards         = "cards"
	RouteComments      = "comments"
	RouteDownload      = "download"
)

const (
	Key   = "test-key"
	Token = "test-token"
)

type override struct {
	status int
	body   string
}

// Server is a fake Trello API. Boards are stored with their lists only; cards
// and comments are served from separate collections, the way the real API
// splits them.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	orgs      []trello.Organization
	boards    map[string]trello.Board
	cards     map[string][]trello.Card
	comments  map[string][]trello.Comment
	files     map[string][]byte
	failing   map[string]map[string]bool
	overrides map[string]override
	requests  map[string]int
}

// New starts a server that is closed when the test ends.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		boards:    map[string]trello.Board{},
		cards:     map[string][]trello.Card{},
		comments:  map[string][]trello.Comment{},
		files:     map[string][]byte{},
		failing:   map[string]map[string]bool{},
		overrides: map[string]override{},
		requests:  map[string]int{},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/1").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/members/me/organizations", s.handle(RouteOrganizations, s.listOrganizations)).Methods(http.MethodGet).Name(RouteOrganizations)
	api.HandleFunc("/boards/{id}", s.handle(RouteBoard, s.getBoard)).Methods(http.MethodGet).Name(RouteBoard)
	api.HandleFunc("/boards/{id}/cards/all", s.handle(RouteCards, s.listCards)).Methods(http.MethodGet).Name(RouteCards)
	api.HandleFunc("/cards/{id}/actions", s.handle(RouteComments, s.listComments)).Methods(http.MethodGet).Name(RouteComments)
	api.HandleFunc("/cards/{card}/attachments/{id}/download/{file}", s.handle(RouteDownload, s.download)).Methods(http.MethodGet).Name(RouteDownload)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)

	return s
}

// BaseURL is the API root to hand to trello.Options.
func (s *Server) BaseURL() string {
	return s.URL + "/1/"
}

// AddOrganization registers an organization. Board ids are appended as
// boards are added with AddBoard.
func (s *Server) AddOrganization(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs = append(s.orgs, trello.Organization{ID: id, DisplayName: name, Name: name, BoardIDs: []string{}})
}

// AddBoard registers a board under orgID. Cards on the board's lists are
// moved into the flat card collection; comments on those cards are served by
// the actions endpoint.
func (s *Server) AddBoard(orgID string, b trello.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orgs {
		if s.orgs[i].ID == orgID {
			s.orgs[i].BoardIDs = append(s.orgs[i].BoardIDs, b.ID)
		}
	}

	var cards []trello.Card
	lists := make([]trello.List, len(b.Lists))
	for i, l := range b.Lists {
		for _, c := range l.Cards {
			if c.ListID == "" {
				c.ListID = l.ID
			}
			s.comments[c.ID] = c.Comments
			c.Comments = nil
			cards = append(cards, c)
		}
		l.Cards = nil
		lists[i] = l
	}
	b.Lists = lists

	s.boards[b.ID] = b
	s.cards[b.ID] = append(s.cards[b.ID], cards...)
}

// AddCard adds a card directly to a board's flat card collection, bypassing
// list membership. Used to simulate cards that reference unknown lists.
func (s *Server) AddCard(boardID string, c trello.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c.Comments
	c.Comments = nil
	s.cards[boardID] = append(s.cards[boardID], c)
}

// AddFile stores the bytes served for an attachment id.
func (s *Server) AddFile(attachmentID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[attachmentID] = data
}

// AttachmentURL returns the download URL for an attachment.
func (s *Server) AttachmentURL(cardID, attachmentID, fileName string) string {
	return fmt.Sprintf("%s/1/cards/%s/attachments/%s/download/%s", s.URL, cardID, attachmentID, fileName)
}

// Fail makes requests on route for the given resource id return 500.
func (s *Server) Fail(route, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[route] == nil {
		s.failing[route] = map[string]bool{}
	}
	s.failing[route][id] = true
}

// Override replaces every response on route with status and body.
func (s *Server) Override(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[route] = override{status: status, body: body}
}

// Requests returns how many requests route has served.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mux.CurrentRoute(r).GetName() == RouteDownload {
			want := fmt.Sprintf(`OAuth oauth_consumer_key="%s", oauth_token="%s"`, Key, Token)
			if r.Header.Get("Authorization") != want {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		} else if r.URL.Query().Get("key") != Key || r.URL.Query().Get("token") != Token {
			http.Error(w, "invalid key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handle(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[route]++
		ov, overridden := s.overrides[route]
		s.mu.Unlock()

		if overridden {
			w.WriteHeader(ov.status)
			_, _ = w.Write([]byte(ov.body))
			return
		}
		fn(w, r)
	}
}

func (s *Server) failed(route, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failing[route][id]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) listOrganizations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	orgs := slices.Clone(s.orgs)
	s.mu.Unlock()
	if orgs == nil {
		orgs = []trello.Organization{}
	}
	writeJSON(w, orgs)
}

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.failed(RouteBoard, id) {
		http.Error(w, "board unavailable", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	b, ok := s.boards[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "board not found", http.StatusNotFound)
		return
	}
	writeJSON(w, b)
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.failed(RouteCards, id) {
		http.Error(w, "cards unavailable", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	cards := slices.Clone(s.cards[id])
	s.mu.Unlock()
	if cards == nil {
		cards = []trello.Card{}
	}
	writeJSON(w, cards)
}

const defaultActionLimit = 50

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if r.URL.Query().Get("filter") != "commentCard" {
		http.Error(w, "unsupported filter", http.StatusBadRequest)
		return
	}
	if s.failed(RouteComments, id) {
		http.Error(w, "actions unavailable", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	comments := slices.Clone(s.comments[id])
	s.mu.Unlock()

	// Trello lists actions newest first and pages at 50 unless asked for more.
	slices.Reverse(comments)
	limit := defaultActionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > trello.MaxCommentActions {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if len(comments) > limit {
		comments = comments[:limit]
	}
	if comments == nil {
		comments = []trello.Comment{}
	}
	writeJSON(w, comments)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.failed(RouteDownload, id) {
		http.Error(w, "download failed", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	data, ok := s.files[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
