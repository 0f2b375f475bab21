package migrate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/tsync/internal/graph"
	"github.com/colonyops/tsync/internal/trello"
)

var (
	testBoards = []trello.Board{{ID: "b1", Name: "Alpha"}, {ID: "b2", Name: "Beta"}}
	testPlans  = []graph.GroupPlan{
		{GroupID: "g1", PlanID: "p1", PlanName: "One"},
		{GroupID: "g1", PlanID: "p2", PlanName: "Two"},
		{GroupID: "g2", PlanID: "p3", PlanName: "Three"},
	}
)

// scripted returns a chooser answering from a fixed list and recording the
// choices it was offered.
func scripted(answers ...int) (Chooser, *[][]graph.GroupPlan) {
	var offered [][]graph.GroupPlan
	return func(_ trello.Board, remaining []graph.GroupPlan) (int, error) {
		offered = append(offered, remaining)
		if len(answers) == 0 {
			return -1, nil
		}
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}, &offered
}

func TestMapBoards(t *testing.T) {
	choose, offered := scripted(2, 0)

	maps, err := MapBoards(testBoards, testPlans, choose)
	require.NoError(t, err)

	assert.Equal(t, []BoardMap{
		{BoardID: "b1", BoardName: "Alpha", GroupID: "g2", PlanID: "p3", PlanName: "Three"},
		{BoardID: "b2", BoardName: "Beta", GroupID: "g1", PlanID: "p1", PlanName: "One"},
	}, maps)

	// The plan chosen for the first board is not offered again.
	require.Len(t, *offered, 2)
	assert.Len(t, (*offered)[1], 2)
	for _, p := range (*offered)[1] {
		assert.NotEqual(t, "p3", p.PlanID)
	}
}

func TestMapBoards_OutOfRangeReprompts(t *testing.T) {
	// len(remaining) itself is out of range.
	choose, offered := scripted(3, -1, 1, 0)

	maps, err := MapBoards(testBoards, testPlans, choose)
	require.NoError(t, err)
	assert.Equal(t, "p2", maps[0].PlanID)
	assert.Equal(t, "p1", maps[1].PlanID)
	assert.Len(t, *offered, 4)
}

func TestMapBoards_TooManyAttempts(t *testing.T) {
	choose, offered := scripted(9, 9, 9, 9, 9, 9)

	_, err := MapBoards(testBoards, testPlans, choose)
	require.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Len(t, *offered, maxChoiceAttempts)
}

func TestMapBoards_InvalidChoiceError(t *testing.T) {
	calls := 0
	choose := func(trello.Board, []graph.GroupPlan) (int, error) {
		calls++
		if calls == 1 {
			return 0, ErrInvalidChoice
		}
		return 0, nil
	}

	_, err := MapBoards(testBoards[:1], testPlans, choose)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMapBoards_ChooserErrorStops(t *testing.T) {
	aborted := errors.New("aborted")
	choose := func(trello.Board, []graph.GroupPlan) (int, error) { return 0, aborted }

	_, err := MapBoards(testBoards, testPlans, choose)
	require.ErrorIs(t, err, aborted)
}

func TestMapBoards_Preconditions(t *testing.T) {
	choose, _ := scripted()

	_, err := MapBoards(nil, testPlans, choose)
	require.ErrorIs(t, err, ErrNoBoards)

	_, err = MapBoards(testBoards, nil, choose)
	require.ErrorIs(t, err, ErrNoPlans)

	_, err = MapBoards(testBoards, testPlans[:1], choose)
	require.ErrorIs(t, err, ErrNotEnoughPlans)
}

func TestBoardMap_String(t *testing.T) {
	m := BoardMap{BoardID: "b1", BoardName: "Alpha", GroupID: "g1", PlanID: "p1", PlanName: "One"}
	assert.Equal(t, "Alpha (b1) -> One (p1) in group g1", m.String())
}
