package diarization

import (
	"context"
	"time"
)

// StubInference is a deterministic single-speaker backend used when no real
// diarization model is bound to the service. It attributes every frame to
// speaker index 0 and reports the full window as processed, which keeps the
// tracker's timing bookkeeping identical to a real backend.
type StubInference struct {
	sampleRate    int
	frameDuration float64
}

// NewStub creates a stub inference backend.
func NewStub(sampleRate int, frameDuration time.Duration) *StubInference {
	return &StubInference{
		sampleRate:    sampleRate,
		frameDuration: frameDuration.Seconds(),
	}
}

func (s *StubInference) Infer(_ context.Context, window []float32) (Prediction, error) {
	seconds := float64(len(window)) / float64(s.sampleRate)
	frames := int(seconds / s.frameDuration)
	if frames < 1 {
		frames = 1
	}
	return Prediction{
		Speakers:      make([]int, frames),
		FrameDuration: s.frameDuration,
		Processed:     seconds,
	}, nil
}

func (s *StubInference) Close() error {
	return nil
}
