package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	envVars := []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "LOG_LEVEL",
		"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ",
		"STT_INTERIM_RESULTS", "STT_AUDIO_ENCODING",
		"DIARIZATION_ENABLED", "DIARIZATION_SAMPLE_RATE_HZ", "DIARIZATION_FRAME_DURATION",
		"KEYWORD_TRIGGERS", "KEYWORD_DEDUP_MODE", "KEYWORD_NOTIFY_TIMEOUT",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_EVENTS", "KAFKA_PRINCIPAL",
		"LIMIT_MAX_BUFFERED_CHUNKS", "LIMIT_MAX_BUFFERED_RESULTS",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Service.Principal != "svc-speech-diarization" {
		t.Errorf("expected default principal 'svc-speech-diarization', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Error("expected default interim results true")
	}
	if cfg.STT.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.STT.AudioEncoding)
	}
	if !cfg.Diarization.Enabled {
		t.Error("expected diarization enabled by default")
	}
	if cfg.Diarization.FrameDuration != 80*time.Millisecond {
		t.Errorf("expected default frame duration 80ms, got %v", cfg.Diarization.FrameDuration)
	}
	if cfg.Keyword.DedupMode != "last" {
		t.Errorf("expected default dedup mode 'last', got %s", cfg.Keyword.DedupMode)
	}
	if cfg.Keyword.Triggers["xin chào"] != "SAY_HELLO" {
		t.Errorf("expected default trigger for greeting, got %v", cfg.Keyword.Triggers)
	}
	if cfg.Limits.MaxBufferedChunks != 64 {
		t.Errorf("expected default max buffered chunks 64, got %d", cfg.Limits.MaxBufferedChunks)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	os.Setenv("DIARIZATION_ENABLED", "false")
	os.Setenv("KEYWORD_DEDUP_MODE", "once")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	os.Setenv("LIMIT_MAX_BUFFERED_CHUNKS", "128")

	defer func() {
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("STT_PROVIDER")
		os.Unsetenv("STT_SAMPLE_RATE_HZ")
		os.Unsetenv("DIARIZATION_ENABLED")
		os.Unsetenv("KEYWORD_DEDUP_MODE")
		os.Unsetenv("KAFKA_BROKERS")
		os.Unsetenv("LIMIT_MAX_BUFFERED_CHUNKS")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.Diarization.Enabled {
		t.Error("expected diarization disabled")
	}
	if cfg.Keyword.DedupMode != "once" {
		t.Errorf("expected dedup mode 'once', got %s", cfg.Keyword.DedupMode)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("expected trimmed broker list, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Limits.MaxBufferedChunks != 128 {
		t.Errorf("expected max buffered chunks 128, got %d", cfg.Limits.MaxBufferedChunks)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("STT_INTERIM_RESULTS", "invalid")
	os.Setenv("DIARIZATION_FRAME_DURATION", "invalid")
	os.Setenv("LIMIT_MAX_BUFFERED_CHUNKS", "invalid")

	defer func() {
		os.Unsetenv("STT_SAMPLE_RATE_HZ")
		os.Unsetenv("STT_INTERIM_RESULTS")
		os.Unsetenv("DIARIZATION_FRAME_DURATION")
		os.Unsetenv("LIMIT_MAX_BUFFERED_CHUNKS")
	}()

	cfg := Load()

	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Error("expected default interim results on invalid input")
	}
	if cfg.Diarization.FrameDuration != 80*time.Millisecond {
		t.Errorf("expected default frame duration on invalid input, got %v", cfg.Diarization.FrameDuration)
	}
	if cfg.Limits.MaxBufferedChunks != 64 {
		t.Errorf("expected default max buffered chunks on invalid input, got %d", cfg.Limits.MaxBufferedChunks)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	defer os.Unsetenv("SERVICE_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultTriggers(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		phrase   string
		code     string
	}{
		{"custom pairs", "hello there:GREETING,goodbye:FAREWELL", "hello there", "GREETING"},
		{"case folded", "Hello There:GREETING", "hello there", "GREETING"},
		{"malformed entries skipped", "no-code,thanks:THANKS", "thanks", "THANKS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("KEYWORD_TRIGGERS", tt.envValue)
			defer os.Unsetenv("KEYWORD_TRIGGERS")

			triggers := envOrDefaultTriggers("KEYWORD_TRIGGERS")
			if triggers[tt.phrase] != tt.code {
				t.Errorf("expected %s -> %s, got %v", tt.phrase, tt.code, triggers)
			}
		})
	}

	t.Run("all malformed falls back to defaults", func(t *testing.T) {
		os.Setenv("KEYWORD_TRIGGERS", "nocode,also-no-code")
		defer os.Unsetenv("KEYWORD_TRIGGERS")

		triggers := envOrDefaultTriggers("KEYWORD_TRIGGERS")
		if triggers["xin chào"] != "SAY_HELLO" {
			t.Errorf("expected default triggers, got %v", triggers)
		}
	})
}
