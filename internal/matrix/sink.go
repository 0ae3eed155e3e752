package matrix

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StoreSink returns a Listener that saves every snapshot to store. Failures
// are logged; the in-memory snapshot stays authoritative.
func StoreSink(ctx context.Context, store Store, logger zerolog.Logger) Listener {
	return func(m *Matrix) {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := store.Save(saveCtx, m); err != nil {
			logger.Error().Err(err).Str("matrix", m.ID).Msg("Failed to persist matrix")
		}
	}
}
