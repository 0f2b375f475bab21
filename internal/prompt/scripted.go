package prompt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Scripted answers prompts from a fixed list. Select answers are parsed as
// option indexes. Once the answers run out every prompt returns ErrAborted.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	asked   []string
}

// NewScripted creates a Prompter that replays answers in order.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// Asked returns the titles of every prompt so far.
func (s *Scripted) Asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.asked...)
}

func (s *Scripted) next(title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.asked = append(s.asked, title)
	if len(s.answers) == 0 {
		return "", ErrAborted
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *Scripted) Select(ctx context.Context, title string, options []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a, err := s.next(title)
	if err != nil {
		return 0, err
	}
	idx, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, fmt.Errorf("scripted answer %q is not an index: %w", a, err)
	}
	return idx, nil
}

func (s *Scripted) Input(ctx context.Context, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.next(title)
}
