// Package config loads service configuration from environment variables.
// Invalid values fall back to defaults rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds process-level identity and ports.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// STTConfig holds transcription provider settings.
type STTConfig struct {
	Provider       string // "mock" or "google"
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// DiarizationConfig holds segment tracker settings.
type DiarizationConfig struct {
	Enabled       bool
	SampleRateHz  int           // input sample rate of the PCM fed to the tracker
	FrameDuration time.Duration // duration of one model prediction frame
}

// KeywordConfig holds trigger phrase detection settings.
type KeywordConfig struct {
	// Triggers maps a case-folded phrase to a symbolic event code.
	Triggers map[string]string
	// DedupMode is "last" (dedup by previous trigger only, re-trigger allowed
	// after a different phrase) or "once" (strict at-most-once per customer).
	DedupMode string
	// NotifyTimeout bounds a single notification dispatch.
	NotifyTimeout time.Duration
}

// KafkaConfig holds event notifier settings.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicEvents string
	Principal   string
}

// LimitsConfig bounds per-connection buffering so a slow pipeline applies
// backpressure to the read loop instead of growing without bound.
type LimitsConfig struct {
	MaxBufferedChunks  int
	MaxBufferedResults int
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Configuration is the root configuration for the service.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	Diarization   DiarizationConfig
	Keyword       KeywordConfig
	Kafka         KafkaConfig
	Limits        LimitsConfig
	Observability ObservabilityConfig
}

// DefaultTriggers is the phrase table used when KEYWORD_TRIGGERS is unset.
func DefaultTriggers() map[string]string {
	return map[string]string{
		"xin chào": "SAY_HELLO",
		"xin lỗi":  "SAY_SORRY",
		"tạm biệt": "SAY_GOODBYE",
	}
}

// Load reads configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-speech-diarization")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
		},
		Diarization: DiarizationConfig{
			Enabled:       envOrDefaultBool("DIARIZATION_ENABLED", true),
			SampleRateHz:  envOrDefaultInt("DIARIZATION_SAMPLE_RATE_HZ", 16000),
			FrameDuration: envOrDefaultDuration("DIARIZATION_FRAME_DURATION", 80*time.Millisecond),
		},
		Keyword: KeywordConfig{
			Triggers:      envOrDefaultTriggers("KEYWORD_TRIGGERS"),
			DedupMode:     envOrDefault("KEYWORD_DEDUP_MODE", "last"),
			NotifyTimeout: envOrDefaultDuration("KEYWORD_NOTIFY_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:     envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:     envOrDefaultList("KAFKA_BROKERS"),
			TopicEvents: envOrDefault("KAFKA_TOPIC_EVENTS", "customer.experience.events"),
			Principal:   envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Limits: LimitsConfig{
			MaxBufferedChunks:  envOrDefaultInt("LIMIT_MAX_BUFFERED_CHUNKS", 64),
			MaxBufferedResults: envOrDefaultInt("LIMIT_MAX_BUFFERED_RESULTS", 64),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envOrDefaultTriggers parses "phrase:CODE,phrase:CODE" pairs. Malformed
// entries are skipped; an empty or unset variable yields the default table.
func envOrDefaultTriggers(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return DefaultTriggers()
	}
	triggers := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		phrase, code, ok := strings.Cut(pair, ":")
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		code = strings.TrimSpace(code)
		if !ok || phrase == "" || code == "" {
			continue
		}
		triggers[phrase] = code
	}
	if len(triggers) == 0 {
		return DefaultTriggers()
	}
	return triggers
}
