// Package models defines the wire-level data structures for the service:
// transcription tokens, result envelopes and notification event payloads.
package models

// Token is a unit of transcribed text with start/end timestamps in seconds
// relative to the beginning of the stream. Speaker is 0 until the aligner
// attributes the token to a diarization segment.
type Token struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker int     `json:"speaker,omitempty"`
}

// TranscriptLine is one speaker-attributed line of finalized text.
type TranscriptLine struct {
	Speaker int     `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Result is one pipeline emission: the transcriber's structured output for a
// cycle, augmented with stream identity and a server timestamp before it is
// sent to the client.
type Result struct {
	Type                string           `json:"type"`
	SessionID           string           `json:"session_id,omitempty"`
	CustomerID          string           `json:"customer_id,omitempty"`
	StreamID            string           `json:"stream_id,omitempty"`
	Timestamp           int64            `json:"timestamp,omitempty"`
	Lines               []TranscriptLine `json:"lines,omitempty"`
	BufferTranscription string           `json:"buffer_transcription,omitempty"`
	Confidence          float64          `json:"confidence,omitempty"`
	Final               bool             `json:"final"`
}

// KeywordEvent is the payload dispatched to the downstream notification API
// when a trigger phrase is detected in finalized text, and once per customer
// on stream completion (EventCode SESSION_END, carrying the full transcript).
type KeywordEvent struct {
	EventType  string `json:"eventType"`
	EventCode  string `json:"eventCode"`
	SessionID  string `json:"sessionId"`
	CustomerID string `json:"customerId"`
	SourceText string `json:"sourceText"`
	Timestamp  int64  `json:"timestamp"`
}
