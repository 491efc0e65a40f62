// Package mock provides a mock STT engine for running without cloud
// credentials. It simulates realistic streaming behavior: progressive partial
// transcripts, exactly one final per stream, and a clean drain on Close.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/service/stt"
)

// SimulatedUtterance is one scripted utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive partial transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances cycles through sample Vietnamese phrases, including the
// default keyword triggers.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"xin", "xin chào"},
		Final:      "xin chào quý khách",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"tôi muốn", "tôi muốn hỏi"},
		Final:      "tôi muốn hỏi về hóa đơn",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"xin lỗi"},
		Final:      "xin lỗi cho tôi hỏi thêm",
		Confidence: 0.90,
	},
	{
		Partials:   []string{"cảm ơn"},
		Final:      "cảm ơn bạn rất nhiều",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"tạm biệt"},
		Final:      "tạm biệt hẹn gặp lại",
		Confidence: 0.96,
	},
}

// wordSeconds is the synthetic duration assigned to each token so finals carry
// plausible word timings for speaker alignment.
const wordSeconds = 0.4

// Engine hands out mock adapters, cycling through its utterance script.
type Engine struct {
	mu         sync.Mutex
	next       int
	utterances []SimulatedUtterance
}

// NewEngine creates a mock engine over the default utterances.
func NewEngine() *Engine {
	return NewEngineWith(DefaultUtterances)
}

// NewEngineWith creates a mock engine over a custom script.
func NewEngineWith(utterances []SimulatedUtterance) *Engine {
	return &Engine{utterances: utterances}
}

// NewSession hands out an adapter scripted with the next utterance.
func (e *Engine) NewSession(ctx context.Context) (stt.Adapter, error) {
	e.mu.Lock()
	utt := e.utterances[e.next%len(e.utterances)]
	e.next++
	e.mu.Unlock()
	return &Adapter{utterance: utt}, nil
}

// Close is a no-op; mock sessions hold no shared resources.
func (e *Engine) Close() error {
	return nil
}

// Adapter implements stt.Adapter with scripted responses. Each audio frame
// advances the script by one partial; when partials are exhausted the final
// fires, mimicking silence detection. Close drains pending emissions, delivers
// the final if it has not fired yet, then signals OnStreamEnd.
type Adapter struct {
	cb stt.Callback

	mu             sync.Mutex
	utterance      SimulatedUtterance
	partialIndex   int
	finalScheduled bool
	finalDelivered bool
	closed         bool
	tasks          sync.WaitGroup
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.cb = cb
	return nil
}

// SendAudio simulates receiving audio and triggers progressive transcripts.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.cb == nil {
		return nil
	}

	if a.partialIndex < len(a.utterance.Partials) {
		partial := a.utterance.Partials[a.partialIndex]
		a.partialIndex++

		a.tasks.Add(1)
		go func(text string) {
			defer a.tasks.Done()
			time.Sleep(20 * time.Millisecond)
			a.mu.Lock()
			if !a.closed && a.cb != nil {
				a.cb.OnPartial(tokensFor(text), text)
			}
			a.mu.Unlock()
		}(partial)
	} else if !a.finalScheduled {
		a.finalScheduled = true

		a.tasks.Add(1)
		go func() {
			defer a.tasks.Done()
			time.Sleep(40 * time.Millisecond)
			a.mu.Lock()
			if !a.closed && a.cb != nil && !a.finalDelivered {
				a.finalDelivered = true
				utt := a.utterance
				a.cb.OnFinal(tokensFor(utt.Final), utt.Final, utt.Confidence)
			}
			a.mu.Unlock()
		}()
	}

	return nil
}

// Close drains scheduled emissions, sends the final if the stream ended before
// the script reached it, then signals the end of the stream.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cb := a.cb
	a.mu.Unlock()

	if cb == nil {
		return nil
	}

	go func() {
		a.tasks.Wait()

		a.mu.Lock()
		delivered := a.finalDelivered
		a.finalDelivered = true
		utt := a.utterance
		a.mu.Unlock()

		if !delivered {
			cb.OnFinal(tokensFor(utt.Final), utt.Final, utt.Confidence)
		}
		cb.OnStreamEnd()
	}()
	return nil
}

// tokensFor synthesizes evenly spaced word timings from transcript text.
func tokensFor(text string) []models.Token {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	tokens := make([]models.Token, 0, len(words))
	for i, w := range words {
		tokens = append(tokens, models.Token{
			Start: float64(i) * wordSeconds,
			End:   float64(i+1) * wordSeconds,
			Text:  w,
		})
	}
	return tokens
}
