package migrate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/colonyops/tsync/internal/graph"
	"github.com/colonyops/tsync/internal/trello"
)

// maxChoiceAttempts bounds how often the operator is asked again after an
// invalid plan choice for one board.
const maxChoiceAttempts = 5

var (
	ErrNoBoards        = errors.New("no boards loaded")
	ErrNoPlans         = errors.New("no plans discovered")
	ErrNotEnoughPlans  = errors.New("fewer plans than boards")
	ErrInvalidChoice   = errors.New("invalid plan choice")
	ErrTooManyAttempts = errors.New("too many invalid plan choices")
)

// Chooser asks which of the remaining plans a board goes to and returns its
// index. Errors wrapping ErrInvalidChoice are treated like an out of range
// index; any other error stops the mapping.
type Chooser func(board trello.Board, remaining []graph.GroupPlan) (int, error)

// MapBoards assigns every board a distinct plan. A chosen plan is removed
// from the choices offered for later boards.
func MapBoards(boards []trello.Board, plans []graph.GroupPlan, choose Chooser) ([]BoardMap, error) {
	if len(boards) == 0 {
		return nil, ErrNoBoards
	}
	if len(plans) == 0 {
		return nil, ErrNoPlans
	}
	if len(plans) < len(boards) {
		return nil, fmt.Errorf("%w: %d boards, %d plans", ErrNotEnoughPlans, len(boards), len(plans))
	}

	remaining := slices.Clone(plans)
	maps := make([]BoardMap, 0, len(boards))

	for _, b := range boards {
		idx, err := chooseValid(b, remaining, choose)
		if err != nil {
			return nil, err
		}

		p := remaining[idx]
		remaining = slices.Delete(remaining, idx, idx+1)

		maps = append(maps, BoardMap{
			BoardID:   b.ID,
			BoardName: b.Name,
			GroupID:   p.GroupID,
			PlanID:    p.PlanID,
			PlanName:  p.PlanName,
		})
	}

	return maps, nil
}

func chooseValid(b trello.Board, remaining []graph.GroupPlan, choose Chooser) (int, error) {
	for range maxChoiceAttempts {
		idx, err := choose(b, remaining)
		switch {
		case errors.Is(err, ErrInvalidChoice):
			continue
		case err != nil:
			return 0, err
		case idx < 0 || idx >= len(remaining):
			continue
		}
		return idx, nil
	}
	return 0, fmt.Errorf("board %s: %w", b.Name, ErrTooManyAttempts)
}
