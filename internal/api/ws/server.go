// Package ws implements the WebSocket transport: the control protocol for
// starting and stopping audio streams, the binary audio path into the
// pipeline, and the result emission path back to the client.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-diarization-service/internal/config"
	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/observability"
	"ai-speech-diarization-service/internal/observability/logging"
	"ai-speech-diarization-service/internal/observability/metrics"
	"ai-speech-diarization-service/internal/service/diarization"
	"ai-speech-diarization-service/internal/service/keyword"
	"ai-speech-diarization-service/internal/service/pipeline"
	"ai-speech-diarization-service/internal/service/session"
	"ai-speech-diarization-service/internal/service/stt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // auth/origin policy is enforced upstream
	},
}

// drainTimeout bounds how long stream cleanup waits for the provider to
// deliver its remaining results after a flush.
const drainTimeout = 10 * time.Second

// writeTimeout bounds every outbound write so a stalled client cannot pin
// the emission goroutine past cleanup.
var writeTimeout = 10 * time.Second

// InferenceFactory produces one diarization backend per stream. It may return
// nil, in which case the stream's tracker runs degraded (no speaker labels).
type InferenceFactory func() diarization.Inference

// Server accepts WebSocket connections and runs the stream protocol on each.
// A connection serves one active stream at a time; after a graceful stop the
// same connection can start a stream for another customer.
type Server struct {
	cfg        *config.Configuration
	engine     stt.Engine
	dispatcher *keyword.Dispatcher
	registry   *session.Registry
	idgen      *session.Generator
	inference  InferenceFactory
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewServer creates the WebSocket server.
func NewServer(
	cfg *config.Configuration,
	engine stt.Engine,
	dispatcher *keyword.Dispatcher,
	registry *session.Registry,
	inference InferenceFactory,
) *Server {
	return &Server{
		cfg:        cfg,
		engine:     engine,
		dispatcher: dispatcher,
		registry:   registry,
		idgen:      session.NewGenerator(),
		inference:  inference,
		logger:     logging.WithComponent("ws"),
		metrics:    metrics.DefaultMetrics,
	}
}

// wsConn serializes writes; the control loop and the emission goroutine both
// write to the same connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) sendJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// stream is the per-stream connection state between start and stop.
type stream struct {
	sessionID  string
	customerID string
	streamID   string
	proc       *pipeline.Processor
	monitor    *session.Monitor
	startedAt  time.Time
	emitDone   chan struct{}
	logger     zerolog.Logger
}

// Handle upgrades the request and runs the connection protocol until the
// client disconnects.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()

	scope := observability.OpenConnection(s.metrics, r.RemoteAddr)
	defer scope.Close()

	conn := &wsConn{conn: raw}
	ctx := r.Context()

	var st *stream
	defer func() {
		// Abnormal disconnect with a live stream: full cleanup still runs.
		if st != nil {
			s.cleanup(st, session.StatusClosed)
		}
	}()

	for {
		mt, data, err := raw.ReadMessage()
		if err != nil {
			return
		}

		switch mt {
		case websocket.TextMessage:
			var msg models.ControlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.sendError(conn, "malformed control message")
				continue
			}

			switch msg.Type {
			case models.TypeAudioStreamStart:
				st = s.handleStart(ctx, conn, st, msg.Data)
			case models.TypeAudioChunkMeta:
				s.handleChunkMeta(conn, st, msg.Data)
			case models.TypeAudioStreamStop:
				if st == nil {
					s.sendError(conn, "no active stream")
					continue
				}
				s.handleStop(conn, st, msg.Data)
				st = nil // connection is reusable for the next customer
			default:
				s.sendError(conn, "unknown message type: "+msg.Type)
			}

		case websocket.BinaryMessage:
			if st == nil {
				s.sendError(conn, "binary frame before audio_stream_start")
				continue
			}
			if len(data) == 0 {
				continue
			}
			if err := st.proc.Submit(ctx, data); err != nil {
				st.logger.Warn().Err(err).Msg("audio chunk rejected")
			}
		}
	}
}

// handleStart validates the start message and builds the stream pipeline. On
// a validation failure the connection stays open and the previous state (if
// any) is preserved.
func (s *Server) handleStart(ctx context.Context, conn *wsConn, prev *stream, data json.RawMessage) *stream {
	var start models.StreamStart
	if len(data) > 0 {
		if err := json.Unmarshal(data, &start); err != nil {
			s.sendError(conn, "malformed audio_stream_start payload")
			return prev
		}
	}
	if start.StreamID == "" {
		s.sendError(conn, "stream_id is required")
		return prev
	}
	if prev != nil {
		s.sendError(conn, "stream already active on this connection")
		return prev
	}

	// Identity fallbacks keep single-customer clients simple.
	customerID := start.CustomerID
	if customerID == "" {
		customerID = start.StreamID
	}
	sessionID := start.SessionID
	if sessionID == "" {
		sessionID = s.idgen.Next()
	}

	s.registry.UpsertCustomer(sessionID, customerID, session.CustomerMetadata{
		StreamID:    start.StreamID,
		Codec:       start.Codec,
		SampleRate:  start.SampleRate,
		TimesliceMs: start.TimesliceMs,
		ClientTs:    start.ClientTs,
		Extra:       start.Metadata,
	})

	adapter, err := s.engine.NewSession(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("transcriber session unavailable")
		// The customer was registered above; without a pipeline nothing else
		// will ever mark it, so the entry must not stay active.
		s.registry.MarkCustomerStatus(sessionID, customerID, session.StatusClosed)
		s.sendError(conn, "transcription backend unavailable")
		return prev
	}

	var inf diarization.Inference
	if s.inference != nil {
		inf = s.inference()
	}
	tracker := diarization.NewTracker(inf, s.cfg.Diarization.SampleRateHz)

	proc := pipeline.New(adapter, tracker, s.cfg.Limits)
	// The pipeline outlives the request handler's return path only until
	// cleanup; background context keeps the provider stream drainable.
	if err := proc.Start(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("pipeline start failed")
		proc.Close()
		s.registry.MarkCustomerStatus(sessionID, customerID, session.StatusClosed)
		s.sendError(conn, "failed to start transcription")
		return prev
	}

	st := &stream{
		sessionID:  sessionID,
		customerID: customerID,
		streamID:   start.StreamID,
		proc:       proc,
		monitor:    session.NewMonitor(),
		startedAt:  time.Now(),
		emitDone:   make(chan struct{}),
		logger:     logging.WithSession(sessionID, customerID, start.StreamID),
	}
	s.metrics.RecordStreamStart()
	st.logger.Info().Str("codec", start.Codec).Int("sampleRate", start.SampleRate).Msg("audio stream started")

	go s.emit(conn, st)

	s.sendAck(conn, models.TypeAudioStreamReady, st, "")
	return st
}

// handleChunkMeta records the advisory sequence check. Gaps and reordering
// are logged and counted, never enforced; the chunk that follows is processed
// regardless.
func (s *Server) handleChunkMeta(conn *wsConn, st *stream, data json.RawMessage) {
	if st == nil {
		s.sendError(conn, "audio_chunk_meta before audio_stream_start")
		return
	}
	var meta models.ChunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		s.sendError(conn, "malformed audio_chunk_meta payload")
		return
	}
	if warn, ok := st.monitor.Observe(meta.Seq); ok {
		s.metrics.RecordSequenceWarning()
		st.logger.Warn().
			Int64("expectedSeq", warn.Expected).
			Int64("observedSeq", warn.Observed).
			Msg("chunk sequence mismatch")
	}
}

// handleStop runs the graceful stop: flush exactly once, acknowledge, then
// wait for the provider drain so ready_to_stop is the connection's last
// stream message.
func (s *Server) handleStop(conn *wsConn, st *stream, data json.RawMessage) {
	var stop models.StreamStop
	if len(data) > 0 {
		_ = json.Unmarshal(data, &stop)
	}
	if stop.Reason == "" {
		stop.Reason = "user_stopped"
	}
	st.logger.Info().Str("reason", stop.Reason).Msg("audio stream stop requested")

	st.proc.Flush()
	s.sendAck(conn, models.TypeAudioStreamStopped, st, stop.Reason)
	s.cleanup(st, session.StatusStopped)
}

// cleanup releases everything a stream holds. Every step runs even if an
// earlier one failed; a disconnect mid-stream must not leak the provider
// session, the tracker or the registry entry.
func (s *Server) cleanup(st *stream, status session.Status) {
	st.proc.Flush()

	select {
	case <-st.emitDone:
	case <-time.After(drainTimeout):
		st.logger.Warn().Msg("provider drain timed out, abandoning remaining results")
	}

	if err := st.proc.Close(); err != nil {
		st.logger.Warn().Err(err).Msg("pipeline close failed")
	}

	s.registry.MarkCustomerStatus(st.sessionID, st.customerID, status)
	if s.registry.IsSessionClosed(st.sessionID) {
		st.logger.Info().Msg("session fully closed")
	}

	s.metrics.RecordStreamEnd(time.Since(st.startedAt).Seconds())
	st.logger.Info().Str("status", status.String()).Msg("audio stream cleaned up")
}

// emit forwards pipeline results to the client, feeds finalized text to the
// keyword dispatcher and accumulates the stream transcript. When the result
// stream closes it sends ready_to_stop and fires the terminal session event.
func (s *Server) emit(conn *wsConn, st *stream) {
	defer close(st.emitDone)

	var transcript strings.Builder
	for res := range st.proc.Results() {
		res.SessionID = st.sessionID
		res.CustomerID = st.customerID
		res.StreamID = st.streamID
		res.Timestamp = time.Now().UnixMilli()

		if res.Type == models.TypeError {
			s.sendError(conn, "transcription failed")
			continue
		}

		if err := conn.sendJSON(res); err != nil {
			st.logger.Debug().Err(err).Msg("result write failed, client gone")
			continue
		}

		if !res.Final {
			continue
		}
		for _, line := range res.Lines {
			st.logger.Info().
				Int("speaker", line.Speaker).
				Float64("start", line.Start).
				Float64("end", line.End).
				Str("text", line.Text).
				Msg("transcript line")
		}
		text := joinLines(res.Lines)
		if text == "" {
			continue
		}
		if transcript.Len() > 0 {
			transcript.WriteString(" ")
		}
		transcript.WriteString(text)

		if sig, ok := s.dispatcher.Evaluate(st.customerID, text); ok {
			s.dispatcher.Dispatch(st.sessionID, sig)
		}
	}

	s.sendAck(conn, models.TypeReadyToStop, st, "")
	s.dispatcher.DispatchFinal(st.sessionID, st.customerID, transcript.String())
}

func joinLines(lines []models.TranscriptLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Text != "" {
			parts = append(parts, l.Text)
		}
	}
	return strings.Join(parts, " ")
}

func (s *Server) sendAck(conn *wsConn, msgType string, st *stream, message string) {
	ack := models.StreamAck{
		SessionID:  st.sessionID,
		CustomerID: st.customerID,
		StreamID:   st.streamID,
		Message:    message,
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := conn.sendJSON(models.ControlMessage{Type: msgType, Data: data}); err != nil {
		st.logger.Debug().Err(err).Str("type", msgType).Msg("ack write failed")
	}
}

func (s *Server) sendError(conn *wsConn, message string) {
	if err := conn.sendJSON(models.ControlMessage{Type: models.TypeError, Message: message}); err != nil {
		s.logger.Debug().Err(err).Msg("error write failed")
	}
}
