package observability

import (
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-diarization-service/internal/observability/metrics"
)

// ConnectionScope instruments the lifetime of one WebSocket connection:
// gauge/counter bookkeeping on open, duration logging on close.
type ConnectionScope struct {
	metrics *metrics.Metrics
	remote  string
	started time.Time
}

// OpenConnection records a newly accepted connection and returns its scope.
func OpenConnection(m *metrics.Metrics, remote string) *ConnectionScope {
	m.RecordConnectionOpen()
	log.Info().Str("remote", remote).Msg("WebSocket connection opened")
	return &ConnectionScope{
		metrics: m,
		remote:  remote,
		started: time.Now(),
	}
}

// Close records the connection ending. Safe to call exactly once via defer.
func (c *ConnectionScope) Close() {
	c.metrics.RecordConnectionClose()
	log.Info().
		Str("remote", c.remote).
		Dur("duration", time.Since(c.started)).
		Msg("WebSocket connection closed")
}
