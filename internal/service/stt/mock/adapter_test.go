package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-speech-diarization-service/internal/models"
)

type recorder struct {
	mu       sync.Mutex
	partials []string
	finals   []string
	tokens   [][]models.Token
	errs     []error
	ended    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ended: make(chan struct{})}
}

func (r *recorder) OnPartial(tokens []models.Token, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partials = append(r.partials, text)
}

func (r *recorder) OnFinal(tokens []models.Token, text string, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, text)
	r.tokens = append(r.tokens, tokens)
}

func (r *recorder) OnStreamEnd() {
	close(r.ended)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) awaitEnd(t *testing.T) {
	t.Helper()
	select {
	case <-r.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never ended")
	}
}

func (r *recorder) snapshot() (partials, finals []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.partials...), append([]string(nil), r.finals...)
}

func newSession(t *testing.T, e *Engine) *Adapter {
	t.Helper()
	a, err := e.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return a.(*Adapter)
}

func TestAdapter_ProgressivePartialsThenFinal(t *testing.T) {
	e := NewEngineWith([]SimulatedUtterance{
		{Partials: []string{"xin", "xin chào"}, Final: "xin chào quý khách", Confidence: 0.95},
	})
	a := newSession(t, e)
	rec := newRecorder()
	a.Start(context.Background(), rec)

	// Two frames for the partials, one more to trigger the final.
	for i := 0; i < 3; i++ {
		a.SendAudio(context.Background(), []byte{0, 0})
	}
	a.Close()
	rec.awaitEnd(t)

	partials, finals := rec.snapshot()
	if len(partials) != 2 || partials[0] != "xin" || partials[1] != "xin chào" {
		t.Errorf("unexpected partials: %v", partials)
	}
	if len(finals) != 1 || finals[0] != "xin chào quý khách" {
		t.Fatalf("expected exactly one final, got %v", finals)
	}
}

func TestAdapter_CloseBeforeFinal_StillDeliversFinal(t *testing.T) {
	e := NewEngine()
	a := newSession(t, e)
	rec := newRecorder()
	a.Start(context.Background(), rec)

	a.SendAudio(context.Background(), []byte{0, 0})
	a.Close()
	rec.awaitEnd(t)

	_, finals := rec.snapshot()
	if len(finals) != 1 {
		t.Fatalf("expected the final before stream end, got %v", finals)
	}
}

func TestAdapter_OnlyOneFinal(t *testing.T) {
	e := NewEngineWith([]SimulatedUtterance{
		{Partials: nil, Final: "tạm biệt", Confidence: 0.9},
	})
	a := newSession(t, e)
	rec := newRecorder()
	a.Start(context.Background(), rec)

	// Script exhausted immediately; the final fires from audio, not Close.
	a.SendAudio(context.Background(), []byte{0, 0})
	time.Sleep(100 * time.Millisecond)
	a.SendAudio(context.Background(), []byte{0, 0})
	a.Close()
	rec.awaitEnd(t)

	_, finals := rec.snapshot()
	if len(finals) != 1 {
		t.Fatalf("expected exactly one final, got %v", finals)
	}
}

func TestAdapter_FinalCarriesWordTimings(t *testing.T) {
	e := NewEngineWith([]SimulatedUtterance{
		{Final: "cảm ơn bạn", Confidence: 0.9},
	})
	a := newSession(t, e)
	rec := newRecorder()
	a.Start(context.Background(), rec)
	a.Close()
	rec.awaitEnd(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.tokens) != 1 {
		t.Fatalf("expected one token group, got %d", len(rec.tokens))
	}
	tokens := rec.tokens[0]
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	for i, tok := range tokens {
		wantStart := float64(i) * wordSeconds
		if tok.Start != wantStart || tok.End != wantStart+wordSeconds {
			t.Errorf("token %d: unexpected timing [%v, %v]", i, tok.Start, tok.End)
		}
	}
}

func TestAdapter_SendAfterCloseIgnored(t *testing.T) {
	e := NewEngine()
	a := newSession(t, e)
	rec := newRecorder()
	a.Start(context.Background(), rec)
	a.Close()
	rec.awaitEnd(t)

	if err := a.SendAudio(context.Background(), []byte{0, 0}); err != nil {
		t.Errorf("send after close must be a no-op, got %v", err)
	}
}

func TestEngine_CyclesUtterances(t *testing.T) {
	e := NewEngine()

	first := newSession(t, e)
	second := newSession(t, e)

	if first.utterance.Final == second.utterance.Final {
		t.Error("consecutive sessions must receive different utterances")
	}
}
