package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts board_id and card_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if boardID := GetBoardID(ctx); boardID != "" {
		e.Str("board_id", boardID)
	}

	if cardID := GetCardID(ctx); cardID != "" {
		e.Str("card_id", cardID)
	}
}
