// Package diarization converts a continuous audio stream plus per-frame
// speaker predictions from an external model into a compact list of
// speaker-attributed time segments, and aligns transcribed tokens against
// those segments.
package diarization

import "context"

// Prediction is the model output for one analysis window.
type Prediction struct {
	// Speakers holds the 0-based speaker index chosen for each frame of the
	// window, in temporal order.
	Speakers []int
	// FrameDuration is the duration of one frame in seconds.
	FrameDuration float64
	// Processed is the amount of input consumed by feature extraction, in
	// seconds. The tracker accumulates it into its time offset; it is never
	// reset mid-stream.
	Processed float64
}

// Inference is the streaming diarization collaborator. Implementations carry
// their own model state forward between calls, so windows must be submitted
// strictly in arrival order by a single goroutine.
type Inference interface {
	Infer(ctx context.Context, window []float32) (Prediction, error)
	Close() error
}
