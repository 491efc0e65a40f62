package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-speech-diarization-service/internal/config"
	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/service/diarization"
	"ai-speech-diarization-service/internal/service/stt/mock"
)

const testRate = 16 // samples per second; one analysis window is 32 bytes

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{MaxBufferedChunks: 8, MaxBufferedResults: 8}
}

func newMockProcessor(t *testing.T, utterances []mock.SimulatedUtterance) *Processor {
	t.Helper()
	e := mock.NewEngineWith(utterances)
	adapter, err := e.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	stub := diarization.NewStub(testRate, 80*time.Millisecond)
	tracker := diarization.NewTracker(stub, testRate)
	return New(adapter, tracker, testLimits())
}

func collect(t *testing.T, p *Processor) []models.Result {
	t.Helper()
	var out []models.Result
	timeout := time.After(2 * time.Second)
	for {
		select {
		case res, ok := <-p.Results():
			if !ok {
				return out
			}
			out = append(out, res)
		case <-timeout:
			t.Fatal("result stream never closed")
		}
	}
}

func TestProcessor_EndToEnd_SpeakerAttributedFinal(t *testing.T) {
	p := newMockProcessor(t, []mock.SimulatedUtterance{
		{Partials: []string{"xin"}, Final: "xin chào", Confidence: 0.95},
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	// Two full analysis windows of audio cover [0s, 2s); the mock's token
	// timings fall inside that span.
	chunk := make([]byte, 2*testRate)
	for i := 0; i < 2; i++ {
		if err := p.Submit(context.Background(), chunk); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Flush()

	results := collect(t, p)

	var final *models.Result
	for i := range results {
		if results[i].Final {
			if final != nil {
				t.Fatal("expected exactly one final result")
			}
			final = &results[i]
		}
	}
	if final == nil {
		t.Fatal("expected a final result")
	}
	if final.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", final.Confidence)
	}
	if len(final.Lines) != 1 {
		t.Fatalf("expected one attributed line, got %+v", final.Lines)
	}
	line := final.Lines[0]
	if line.Speaker != 1 {
		t.Errorf("expected speaker 1 from diarization, got %d", line.Speaker)
	}
	if line.Text != "xin chào" {
		t.Errorf("expected folded line text, got %q", line.Text)
	}
}

func TestProcessor_SubmitAfterFlush(t *testing.T) {
	p := newMockProcessor(t, mock.DefaultUtterances)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	p.Flush()
	if err := p.Submit(context.Background(), []byte{0, 0}); err != ErrStreamFlushed {
		t.Errorf("expected ErrStreamFlushed, got %v", err)
	}
	collect(t, p)
}

func TestProcessor_FlushIdempotent(t *testing.T) {
	p := newMockProcessor(t, mock.DefaultUtterances)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	p.Flush()
	p.Flush() // second call must not panic or double-close

	collect(t, p)

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Error("pipeline goroutine never exited")
	}
}

func TestProcessor_BackpressureBlocksSubmit(t *testing.T) {
	e := mock.NewEngine()
	adapter, _ := e.NewSession(context.Background())
	tracker := diarization.NewTracker(nil, testRate)
	p := New(adapter, tracker, config.LimitsConfig{MaxBufferedChunks: 1, MaxBufferedResults: 1})

	// Pipeline never started: the queue fills and Submit must block until
	// the context expires.
	if err := p.Submit(context.Background(), []byte{0, 0}); err != nil {
		t.Fatalf("first submit should fit the queue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Submit(ctx, []byte{0, 0}); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded from blocked submit, got %v", err)
	}
}

func TestProcessor_DegradedDiarization(t *testing.T) {
	e := mock.NewEngineWith([]mock.SimulatedUtterance{
		{Final: "cảm ơn bạn", Confidence: 0.9},
	})
	adapter, _ := e.NewSession(context.Background())
	tracker := diarization.NewTracker(nil, testRate)
	p := New(adapter, tracker, testLimits())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	p.Submit(context.Background(), make([]byte, 2*testRate))
	p.Flush()

	results := collect(t, p)

	var finals int
	for _, res := range results {
		if !res.Final {
			continue
		}
		finals++
		for _, line := range res.Lines {
			if line.Speaker != 0 {
				t.Errorf("degraded mode must leave speakers unset, got %d", line.Speaker)
			}
		}
	}
	if finals != 1 {
		t.Errorf("expected one final in degraded mode, got %d", finals)
	}
}

func TestProcessor_CallbacksAfterErrorAreDropped(t *testing.T) {
	e := mock.NewEngine()
	adapter, _ := e.NewSession(context.Background())
	tracker := diarization.NewTracker(nil, testRate)
	p := New(adapter, tracker, testLimits())

	p.OnError(errors.New("backend gone"))

	// The provider's receive goroutine can still hold a final when the
	// pipeline goroutine reports a send failure; late callbacks must be
	// discarded, never sent on the closed result channel.
	p.OnFinal([]models.Token{{Start: 0, End: 0.4, Text: "xin"}}, "xin", 0.9)
	p.OnPartial(nil, "xin")
	p.OnStreamEnd()
	p.OnError(errors.New("still gone"))

	results := collect(t, p)
	if len(results) != 1 || results[0].Type != models.TypeError {
		t.Fatalf("expected only the error result, got %+v", results)
	}
}

func TestLinesFromTokens_FoldsBySpeaker(t *testing.T) {
	tokens := []models.Token{
		{Start: 0, End: 0.4, Text: "xin", Speaker: 1},
		{Start: 0.4, End: 0.8, Text: "chào", Speaker: 1},
		{Start: 0.8, End: 1.2, Text: "vâng", Speaker: 2},
		{Start: 1.2, End: 1.6, Text: "ạ", Speaker: 2},
		{Start: 1.6, End: 2.0, Text: "cảm", Speaker: 1},
	}

	lines := linesFromTokens(tokens)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %+v", lines)
	}
	if lines[0].Speaker != 1 || lines[0].Text != "xin chào" || lines[0].Start != 0 || lines[0].End != 0.8 {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Speaker != 2 || lines[1].Text != "vâng ạ" {
		t.Errorf("unexpected second line: %+v", lines[1])
	}
	if lines[2].Speaker != 1 || lines[2].Text != "cảm" {
		t.Errorf("unexpected third line: %+v", lines[2])
	}
}

func TestLinesFromTokens_Empty(t *testing.T) {
	if got := linesFromTokens(nil); got != nil {
		t.Errorf("expected no lines for no tokens, got %+v", got)
	}
}
