// Package pipeline coordinates one audio stream through the transcription
// adapter and the diarization tracker, merging their outputs into
// speaker-attributed results.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ai-speech-diarization-service/internal/audio"
	"ai-speech-diarization-service/internal/config"
	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/observability/logging"
	"ai-speech-diarization-service/internal/observability/metrics"
	"ai-speech-diarization-service/internal/service/diarization"
	"ai-speech-diarization-service/internal/service/stt"
)

// ErrStreamFlushed is returned by Submit after the stream has been flushed.
var ErrStreamFlushed = errors.New("stream already flushed")

// Processor is the per-stream pipeline. Audio chunks are accepted through a
// bounded queue and consumed by a single goroutine that forwards each chunk to
// the STT adapter and the diarization tracker in arrival order. Provider
// callbacks are aligned against the tracker's segments and emitted as results.
//
// The bounded queue is the backpressure mechanism: when the pipeline falls
// behind, Submit blocks the caller's read loop instead of buffering without
// limit.
type Processor struct {
	adapter stt.Adapter
	tracker *diarization.Tracker
	decoder *audio.PCM16Decoder

	audioCh chan []byte
	results chan models.Result
	done    chan struct{}

	mu        sync.Mutex
	flushed   bool
	sttFailed bool

	// emitMu orders every send on results against its close. The provider's
	// receive goroutine and the pipeline goroutine both emit; either may end
	// the stream while the other still holds a result.
	emitMu sync.Mutex
	ended  bool

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a pipeline for one stream. The tracker may run degraded (nil
// inference); the adapter must be unstarted.
func New(adapter stt.Adapter, tracker *diarization.Tracker, limits config.LimitsConfig) *Processor {
	return &Processor{
		adapter: adapter,
		tracker: tracker,
		decoder: audio.NewPCM16Decoder(),
		audioCh: make(chan []byte, limits.MaxBufferedChunks),
		results: make(chan models.Result, limits.MaxBufferedResults),
		done:    make(chan struct{}),
		logger:  logging.WithComponent("pipeline"),
		metrics: metrics.DefaultMetrics,
	}
}

// Start begins the STT session with this processor as the callback receiver
// and spawns the pipeline goroutine.
func (p *Processor) Start(ctx context.Context) error {
	if err := p.adapter.Start(ctx, p); err != nil {
		return err
	}
	go p.run(ctx)
	return nil
}

// Submit queues one audio chunk. Blocks when the pipeline is behind; returns
// ErrStreamFlushed once the stream has been flushed.
func (p *Processor) Submit(ctx context.Context, chunk []byte) error {
	p.mu.Lock()
	if p.flushed {
		p.mu.Unlock()
		return ErrStreamFlushed
	}
	// Held across the send so Flush cannot close the queue mid-send.
	defer p.mu.Unlock()

	select {
	case p.audioCh <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush ends audio intake exactly once: the queue is closed, the pipeline
// drains it, then the adapter is half-closed so the provider can deliver its
// remaining results. Safe to call multiple times.
func (p *Processor) Flush() {
	p.mu.Lock()
	if p.flushed {
		p.mu.Unlock()
		return
	}
	p.flushed = true
	close(p.audioCh)
	p.mu.Unlock()
}

// Results is the stream of emitted results. Closed after the provider stream
// has drained (or failed); no results follow the close.
func (p *Processor) Results() <-chan models.Result {
	return p.results
}

// Done is closed when the pipeline goroutine has exited.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// Close releases the pipeline's resources. Flushes if the caller has not, so
// cleanup always runs even after an abnormal disconnect.
func (p *Processor) Close() error {
	p.Flush()
	if err := p.tracker.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("tracker close failed")
	}
	return nil
}

// run consumes the audio queue in arrival order. Both lanes see every chunk
// in the same order; the tracker's model state and offset accumulator depend
// on it.
func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	for chunk := range p.audioCh {
		p.metrics.RecordAudioReceived(len(chunk))

		p.mu.Lock()
		sttFailed := p.sttFailed
		p.mu.Unlock()

		if !sttFailed {
			if err := p.adapter.SendAudio(ctx, chunk); err != nil {
				p.logger.Error().Err(err).Msg("audio forward to transcriber failed")
				p.OnError(err)
			}
		}

		p.tracker.Feed(ctx, p.decoder.Decode(chunk))
	}

	if err := p.adapter.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("adapter close failed")
	}
}

// --- stt.Callback implementation ---

// OnPartial aligns interim tokens against the current segments and emits a
// non-final result. Partials are disposable: when the consumer is behind the
// emission is dropped rather than blocking the provider.
func (p *Processor) OnPartial(tokens []models.Token, text string) {
	p.metrics.TranscriptsPartial.Inc()
	tokens = p.tracker.Assign(tokens)

	res := models.Result{
		Type:                models.TypeTranscript,
		Lines:               linesFromTokens(tokens),
		BufferTranscription: text,
		Final:               false,
	}

	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	if p.ended {
		return
	}
	select {
	case p.results <- res:
	default:
		p.logger.Debug().Msg("dropping partial result, consumer behind")
	}
}

// OnFinal aligns finalized tokens and emits a final result. Finals are never
// dropped; a slow consumer blocks the provider callback instead.
func (p *Processor) OnFinal(tokens []models.Token, text string, confidence float64) {
	p.metrics.TranscriptsFinal.Inc()
	tokens = p.tracker.Assign(tokens)

	lines := linesFromTokens(tokens)
	if len(lines) == 0 && text != "" {
		lines = []models.TranscriptLine{{Text: text}}
	}

	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	if p.ended {
		p.logger.Debug().Msg("dropping final result, stream already ended")
		return
	}
	p.results <- models.Result{
		Type:       models.TypeTranscript,
		Lines:      lines,
		Confidence: confidence,
		Final:      true,
	}
}

// OnStreamEnd closes the result stream. Terminal.
func (p *Processor) OnStreamEnd() {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	if p.ended {
		return
	}
	p.ended = true
	close(p.results)
}

// OnError surfaces a transcription failure and ends the result stream. Fatal
// to this stream only; other streams are unaffected.
func (p *Processor) OnError(err error) {
	p.logger.Error().Err(err).Msg("transcription stream failed")

	p.mu.Lock()
	p.sttFailed = true
	p.mu.Unlock()

	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	if p.ended {
		return
	}
	p.ended = true
	select {
	case p.results <- models.Result{Type: models.TypeError}:
	default:
	}
	close(p.results)
}

// linesFromTokens folds consecutive same-speaker tokens into attributed lines.
func linesFromTokens(tokens []models.Token) []models.TranscriptLine {
	var lines []models.TranscriptLine
	for _, tok := range tokens {
		if n := len(lines); n > 0 && lines[n-1].Speaker == tok.Speaker {
			lines[n-1].End = tok.End
			lines[n-1].Text = strings.TrimSpace(lines[n-1].Text + " " + tok.Text)
			continue
		}
		lines = append(lines, models.TranscriptLine{
			Speaker: tok.Speaker,
			Start:   tok.Start,
			End:     tok.End,
			Text:    strings.TrimSpace(tok.Text),
		})
	}
	return lines
}
