package models

import "encoding/json"

// Control message types exchanged over the WebSocket connection.
const (
	TypeAudioStreamStart   = "audio_stream_start"
	TypeAudioStreamReady   = "audio_stream_ready"
	TypeAudioChunkMeta     = "audio_chunk_meta"
	TypeAudioStreamStop    = "audio_stream_stop"
	TypeAudioStreamStopped = "audio_stream_stopped"
	TypeReadyToStop        = "ready_to_stop"
	TypeError              = "error"
	TypeTranscript         = "transcript"
)

// ControlMessage is the envelope for all text frames on the connection.
type ControlMessage struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// StreamStart carries the payload of an audio_stream_start message.
// CustomerID falls back to StreamID when absent; StreamID is required.
type StreamStart struct {
	SessionID   string            `json:"session_id,omitempty"`
	CustomerID  string            `json:"customer_id,omitempty"`
	StreamID    string            `json:"stream_id"`
	Codec       string            `json:"codec,omitempty"`
	SampleRate  int               `json:"sample_rate,omitempty"`
	TimesliceMs int               `json:"timeslice_ms,omitempty"`
	ClientTs    int64             `json:"client_ts,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ChunkMeta precedes exactly one binary audio frame.
type ChunkMeta struct {
	Seq            int64 `json:"seq"`
	Ts             int64 `json:"ts,omitempty"`
	DurationMsHint int   `json:"duration_ms_hint,omitempty"`
}

// StreamStop carries the payload of an audio_stream_stop message.
type StreamStop struct {
	SessionID  string `json:"session_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	StreamID   string `json:"stream_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// StreamAck is the data payload of ready/stopped/ready_to_stop replies.
type StreamAck struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
	StreamID   string `json:"stream_id"`
	Message    string `json:"message,omitempty"`
}
