package logging

import "context"

type contextKey string

const (
	boardIDKey contextKey = "board_id"
	cardIDKey  contextKey = "card_id"
)

// WithBoardID adds a Trello board ID to the context.
func WithBoardID(ctx context.Context, boardID string) context.Context {
	return context.WithValue(ctx, boardIDKey, boardID)
}

// WithCardID adds a Trello card ID to the context.
func WithCardID(ctx context.Context, cardID string) context.Context {
	return context.WithValue(ctx, cardIDKey, cardID)
}

// GetBoardID retrieves the board ID from the context.
// Returns empty string if not present.
func GetBoardID(ctx context.Context) string {
	if id, ok := ctx.Value(boardIDKey).(string); ok {
		return id
	}
	return ""
}

// GetCardID retrieves the card ID from the context.
// Returns empty string if not present.
func GetCardID(ctx context.Context) string {
	if id, ok := ctx.Value(cardIDKey).(string); ok {
		return id
	}
	return ""
}
