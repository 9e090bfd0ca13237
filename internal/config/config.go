package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	AudioCodecNative = "native"
	AudioCodecFFmpeg = "ffmpeg"

	STTProviderGoogle = "google"
	STTProviderOpenAI = "openai"
	STTProviderNone   = "none"
)

type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	SegmentsDir            string
	MaxUploadBytes         int64
	SupportedExtensions    []string
	StreamMaxMessageBytes  int64
	SampleRate             int
	SilenceMinMs           int
	SilenceThresholdDB     float64
	SilenceSeekStepMs      int
	SentenceMinSeconds     float64
	SentenceMaxSeconds     float64
	TranscribeLanguage     string
	WorkerPoolSize         int
	AudioCodec             string
	FFmpegPath             string
	STTProvider            string
	GoogleCloudProjectID   string
	GoogleCloudCredentials string
	GoogleCloudLocation    string
	GoogleCloudSpeechModel string
	OpenAIAPIKey           string
	OpenAITranscribeModel  string
	SegmentsWebhookURL     string
	TempPurgeInterval      time.Duration
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.StreamMaxMessageBytes <= 0 {
		return fmt.Errorf("STREAM_MAX_MESSAGE_BYTES must be positive, got %d", c.StreamMaxMessageBytes)
	}
	if len(c.SupportedExtensions) == 0 {
		return fmt.Errorf("SUPPORTED_EXTENSIONS must list at least one extension")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.SilenceMinMs <= 0 {
		return fmt.Errorf("SILENCE_MIN_MS must be positive, got %d", c.SilenceMinMs)
	}
	if c.SilenceThresholdDB < 0 {
		return fmt.Errorf("SILENCE_THRESHOLD_DB must not be negative, got %v", c.SilenceThresholdDB)
	}
	if c.SilenceSeekStepMs <= 0 {
		return fmt.Errorf("SILENCE_SEEK_STEP_MS must be positive, got %d", c.SilenceSeekStepMs)
	}
	if c.SentenceMinSeconds <= 0 || c.SentenceMaxSeconds < c.SentenceMinSeconds {
		return fmt.Errorf("sentence length band is invalid: min=%v max=%v", c.SentenceMinSeconds, c.SentenceMaxSeconds)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", c.WorkerPoolSize)
	}
	if c.TempPurgeInterval < 0 {
		return fmt.Errorf("TEMP_PURGE_INTERVAL must not be negative, got %s", c.TempPurgeInterval)
	}
	switch c.AudioCodec {
	case AudioCodecNative:
	case AudioCodecFFmpeg:
		if c.FFmpegPath == "" {
			return fmt.Errorf("FFMPEG_PATH is required when AUDIO_CODEC=ffmpeg")
		}
	default:
		return fmt.Errorf("AUDIO_CODEC must be %q or %q, got %q", AudioCodecNative, AudioCodecFFmpeg, c.AudioCodec)
	}
	switch c.STTProvider {
	case STTProviderGoogle:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentials == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when STT_PROVIDER=google")
		}
	case STTProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when STT_PROVIDER=openai")
		}
	case STTProviderNone:
	default:
		return fmt.Errorf("STT_PROVIDER must be one of google, openai, none; got %q", c.STTProvider)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "SEGMENTS_DIR", value: c.SegmentsDir},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsSupportedFile reports whether filename carries one of the accepted upload extensions.
func (c *Config) IsSupportedFile(filename string) bool {
	name := strings.ToLower(filename)
	for _, ext := range c.SupportedExtensions {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// InputExtension is the extension used when staging raw uploads.
func (c *Config) InputExtension() string {
	if len(c.SupportedExtensions) == 0 {
		return ".mp3"
	}
	return c.SupportedExtensions[0]
}
