// Package keyword detects configured trigger phrases in finalized transcript
// text and dispatches at-most-once notification events per customer, without
// ever blocking the transcription path.
package keyword

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-diarization-service/internal/events"
	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/observability/logging"
	"ai-speech-diarization-service/internal/observability/metrics"
)

// Dedup modes. Both appear in practice: "last" allows a phrase to re-trigger
// after a different phrase fired in between; "once" is strict
// at-most-once-per-keyword-per-customer.
const (
	DedupLast = "last"
	DedupOnce = "once"
)

// EventCodeSessionEnd is dispatched unconditionally once per customer on
// stream completion, carrying the accumulated transcript.
const EventCodeSessionEnd = "SESSION_END"

const (
	eventTypeKeyword    = "customer.experience.keyword"
	eventTypeSessionEnd = "customer.experience.session_end"
)

// Signal is a detected trigger ready for dispatch.
type Signal struct {
	CustomerID string
	EventCode  string
	SourceText string
}

type trigger struct {
	phrase string
	code   string
}

// Dispatcher evaluates finalized text against the trigger table and fires
// notifications through the notifier as detached units of work. Safe for
// concurrent use across streams.
type Dispatcher struct {
	mu       sync.Mutex
	triggers []trigger
	mode     string
	last     map[string]string          // customer id -> last triggered code
	fired    map[string]map[string]bool // customer id -> fired codes (once mode)

	notifier events.Notifier
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// New creates a dispatcher. Phrases are matched case-folded; the table is
// scanned in deterministic (sorted) order.
func New(triggers map[string]string, mode string, notifier events.Notifier, timeout time.Duration) *Dispatcher {
	tt := make([]trigger, 0, len(triggers))
	for phrase, code := range triggers {
		tt = append(tt, trigger{phrase: strings.ToLower(phrase), code: code})
	}
	sort.Slice(tt, func(i, j int) bool { return tt[i].phrase < tt[j].phrase })

	if mode != DedupOnce {
		mode = DedupLast
	}

	return &Dispatcher{
		triggers: tt,
		mode:     mode,
		last:     make(map[string]string),
		fired:    make(map[string]map[string]bool),
		notifier: notifier,
		timeout:  timeout,
		metrics:  metrics.DefaultMetrics,
		logger:   logging.WithComponent("keyword"),
	}
}

// Evaluate scans finalized text for a trigger phrase. A signal is returned
// only when a match passes the configured dedup policy; the customer's
// keyword state is updated in the same step.
func (d *Dispatcher) Evaluate(customerId, finalizedText string) (Signal, bool) {
	folded := strings.ToLower(finalizedText)

	var match *trigger
	for i := range d.triggers {
		if strings.Contains(folded, d.triggers[i].phrase) {
			match = &d.triggers[i]
			break
		}
	}
	if match == nil {
		return Signal{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.mode {
	case DedupOnce:
		set := d.fired[customerId]
		if set == nil {
			set = make(map[string]bool)
			d.fired[customerId] = set
		}
		if set[match.code] {
			return Signal{}, false
		}
		set[match.code] = true
	default: // DedupLast
		if d.last[customerId] == match.code {
			return Signal{}, false
		}
	}
	d.last[customerId] = match.code

	d.metrics.RecordKeywordEvent(match.code)
	return Signal{
		CustomerID: customerId,
		EventCode:  match.code,
		SourceText: finalizedText,
	}, true
}

// Dispatch fires a signal as an independent, non-blocking unit of work. A
// failure or slow notifier never delays or drops subsequent transcription
// output; the outcome is only logged.
func (d *Dispatcher) Dispatch(sessionId string, sig Signal) {
	ev := models.KeywordEvent{
		EventType:  eventTypeKeyword,
		EventCode:  sig.EventCode,
		SessionID:  sessionId,
		CustomerID: sig.CustomerID,
		SourceText: sig.SourceText,
		Timestamp:  time.Now().UnixMilli(),
	}
	d.dispatchAsync(ev)
}

// DispatchFinal unconditionally fires the terminal session-end event for a
// customer, carrying the accumulated transcript, then disposes of that
// customer's transient keyword state.
func (d *Dispatcher) DispatchFinal(sessionId, customerId, transcript string) {
	ev := models.KeywordEvent{
		EventType:  eventTypeSessionEnd,
		EventCode:  EventCodeSessionEnd,
		SessionID:  sessionId,
		CustomerID: customerId,
		SourceText: transcript,
		Timestamp:  time.Now().UnixMilli(),
	}
	d.dispatchAsync(ev)

	d.mu.Lock()
	delete(d.last, customerId)
	delete(d.fired, customerId)
	d.mu.Unlock()
}

func (d *Dispatcher) dispatchAsync(ev models.KeywordEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx := context.Background()
		cancel := context.CancelFunc(func() {})
		if d.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
		}
		defer cancel()

		if err := d.notifier.Notify(ctx, ev); err != nil {
			d.logger.Error().
				Err(err).
				Str("eventCode", ev.EventCode).
				Str("customerId", ev.CustomerID).
				Msg("notification dispatch failed")
			return
		}
		d.logger.Info().
			Str("eventCode", ev.EventCode).
			Str("sessionId", ev.SessionID).
			Str("customerId", ev.CustomerID).
			Msg("keyword event dispatched")
	}()
}

// Drain waits for in-flight dispatches, bounded by the given timeout. Used on
// process shutdown so detached notification tasks are not cut off mid-write.
func (d *Dispatcher) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn().Msg("abandoning in-flight notification dispatches on shutdown")
	}
}
