package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component creates a logger tagged with the "cmp" key, derived from the
// global logger so it picks up the level and output configured at startup.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}

// WithContextHook returns l with ContextHook attached so events logged
// with .Ctx(ctx) carry board and card ids.
func WithContextHook(l zerolog.Logger) zerolog.Logger {
	return l.Hook(ContextHook{})
}
