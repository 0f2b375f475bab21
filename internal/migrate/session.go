// Package migrate drives a Trello to Planner migration: board to plan
// mapping, attachment upload, task creation and cleanup.
package migrate

import (
	"fmt"
	"slices"
	"sync"

	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/trello"
)

// BoardMap pairs a Trello board with the plan it migrates into.
type BoardMap struct {
	BoardID   string `json:"boardId"`
	BoardName string `json:"boardName"`
	GroupID   string `json:"groupId"`
	PlanID    string `json:"planId"`
	PlanName  string `json:"planName"`
}

func (m BoardMap) String() string {
	return fmt.Sprintf("%s (%s) -> %s (%s) in group %s", m.BoardName, m.BoardID, m.PlanName, m.PlanID, m.GroupID)
}

// Session is the state of one operator run: the loaded boards, the board
// mapping and the upload results.
type Session struct {
	mu       sync.Mutex
	boards   []trello.Board
	maps     []BoardMap
	uploaded []filemeta.FileMeta
}

func NewSession() *Session {
	return &Session{}
}

// SetBoards replaces the loaded boards.
func (s *Session) SetBoards(boards []trello.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards = boards
}

// Boards returns the loaded boards.
func (s *Session) Boards() []trello.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.boards)
}

// Maps returns the board mapping in board order.
func (s *Session) Maps() []BoardMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.maps)
}

func (s *Session) setMaps(maps []BoardMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maps = maps
}

// MapFor returns the mapping of a board.
func (s *Session) MapFor(boardID string) (BoardMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.maps {
		if m.BoardID == boardID {
			return m, true
		}
	}
	return BoardMap{}, false
}

// Uploaded returns the recorded upload results.
func (s *Session) Uploaded() []filemeta.FileMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.uploaded)
}

func (s *Session) addUploaded(m filemeta.FileMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, m)
}

func (s *Session) setUploaded(metas []filemeta.FileMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = metas
}
