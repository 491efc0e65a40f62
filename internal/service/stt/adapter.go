// Package stt defines the interfaces for streaming Speech-to-Text providers.
package stt

import (
	"context"

	"ai-speech-diarization-service/internal/models"
)

// Callback receives transcript results from the STT provider. Token groups
// carry per-token start/end timestamps in seconds from stream start.
type Callback interface {
	// OnPartial is called when an interim token group is received.
	OnPartial(tokens []models.Token, text string)

	// OnFinal is called when a finalized token group is received.
	OnFinal(tokens []models.Token, text string, confidence float64)

	// OnStreamEnd is called exactly once when the provider stream has
	// drained after Close. No callbacks follow it.
	OnStreamEnd()

	// OnError is called when a transcription error occurs. Fatal to the
	// stream it belongs to, never to other streams.
	OnError(err error)
}

// Adapter is one streaming transcription session bound to one audio stream.
type Adapter interface {
	// Start begins the session with this callback receiver.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the provider in arrival order.
	SendAudio(ctx context.Context, audio []byte) error

	// Close signals end of audio and lets the provider drain. OnStreamEnd
	// fires when the drain completes.
	Close() error
}

// Engine is the shared provider handle: constructed once at boot, injected
// into every connection handler, handing out one Adapter per stream. The
// underlying provider client is never duplicated; concurrency safety is
// delegated to the provider.
type Engine interface {
	NewSession(ctx context.Context) (Adapter, error)
	Close() error
}
