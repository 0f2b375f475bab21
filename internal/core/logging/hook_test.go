package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		setupCtx  func() context.Context
		want      map[string]string
		wantEmpty []string
	}{
		{
			name: "board and card",
			setupCtx: func() context.Context {
				ctx := WithBoardID(context.Background(), "b-1")
				return WithCardID(ctx, "c-1")
			},
			want: map[string]string{"board_id": "b-1", "card_id": "c-1"},
		},
		{
			name: "board only",
			setupCtx: func() context.Context {
				return WithBoardID(context.Background(), "b-1")
			},
			want:      map[string]string{"board_id": "b-1"},
			wantEmpty: []string{"card_id"},
		},
		{
			name:      "no context values",
			setupCtx:  context.Background,
			wantEmpty: []string{"board_id", "card_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(tt.setupCtx()).Msg("test")

			var logEntry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				t.Fatalf("failed to parse log: %v", err)
			}

			for key, value := range tt.want {
				if got, ok := logEntry[key]; !ok || got != value {
					t.Errorf("%s = %v, want %q", key, got, value)
				}
			}

			for _, key := range tt.wantEmpty {
				if _, ok := logEntry[key]; ok {
					t.Errorf("expected %s to be absent from log", key)
				}
			}
		})
	}
}
