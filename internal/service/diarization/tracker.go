package diarization

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/observability/logging"
	"ai-speech-diarization-service/internal/observability/metrics"
)

// Segment is a contiguous time interval attributed to one speaker. Speaker
// ids are positive; times are seconds from the start of the stream.
type Segment struct {
	Speaker int
	Start   float64
	End     float64
}

// Tracker buffers raw PCM for one stream, drains it through the inference
// collaborator in fixed one-second windows, and merges adjacent same-speaker
// frame predictions into segments.
//
// If the collaborator is unavailable (nil), the tracker degrades to a no-op:
// Feed discards audio without buffering it and Assign leaves tokens unset.
type Tracker struct {
	mu        sync.Mutex
	inference Inference
	window    int // samples per analysis window (one second of audio)
	buffer    []float32
	offset    float64 // accumulated decode-time offset, seconds
	segments  []Segment
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewTracker creates a tracker for one stream. sampleRate is the rate of the
// PCM fed to it; one analysis window is one second of audio.
func NewTracker(inference Inference, sampleRate int) *Tracker {
	return &Tracker{
		inference: inference,
		window:    sampleRate,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithComponent("diarization"),
	}
}

// Feed appends samples to the rolling buffer and drains complete windows
// through the inference collaborator in strict arrival order. The offset
// accumulator and the model's carried state are sequential by construction,
// so no reordering or lookahead is permitted.
func (t *Tracker) Feed(ctx context.Context, pcm []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inference == nil {
		// Degraded mode: nothing will ever drain the buffer, so audio is
		// dropped rather than accumulated for the life of the stream.
		return
	}
	t.buffer = append(t.buffer, pcm...)

	for len(t.buffer) >= t.window {
		chunk := t.buffer[:t.window]
		t.buffer = t.buffer[t.window:]

		pred, err := t.inference.Infer(ctx, chunk)
		if err != nil {
			t.logger.Warn().Err(err).Msg("diarization inference failed, skipping window")
			continue
		}

		for i, spk := range pred.Speakers {
			start := t.offset + float64(i)*pred.FrameDuration
			end := start + pred.FrameDuration
			t.appendFrame(spk+1, start, end, pred.FrameDuration)
		}

		t.offset += pred.Processed
		t.metrics.RecordWindowProcessed()
	}
}

// appendFrame extends the last segment iff the speaker matches and the frame
// is temporally adjacent; otherwise it appends a new segment. Segments are
// therefore stored in non-decreasing start-time order.
func (t *Tracker) appendFrame(speaker int, start, end, frameDuration float64) {
	if n := len(t.segments); n > 0 {
		last := &t.segments[n-1]
		adjacent := start <= last.End+frameDuration/2
		if last.Speaker == speaker && adjacent {
			last.End = end
			return
		}
	}
	t.segments = append(t.segments, Segment{Speaker: speaker, Start: start, End: end})
	t.metrics.RecordSegmentAppended()
}

// Assign sets the speaker of every token that overlaps a stored segment.
// When a token overlaps several segments the last one in storage order wins.
func (t *Tracker) Assign(tokens []models.Token) []models.Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range tokens {
		assigned := false
		for _, seg := range t.segments {
			if !(seg.End <= tokens[i].Start || seg.Start >= tokens[i].End) {
				tokens[i].Speaker = seg.Speaker
				assigned = true
			}
		}
		if assigned {
			t.metrics.TokensAligned.Inc()
		}
	}
	return tokens
}

// Segments returns a copy of the stored segments.
func (t *Tracker) Segments() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// BufferedSamples returns the number of samples waiting for a full window.
func (t *Tracker) BufferedSamples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// Close releases the inference collaborator.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inference == nil {
		return nil
	}
	return t.inference.Close()
}
