package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/segmentd/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	HTTPAddr                   string        `env:"HTTP_ADDR" envDefault:":8000"`
	DatabaseURL                string        `env:"DATABASE_URL" envDefault:"sqlite://./audio_segments.db"`
	SegmentsDir                string        `env:"SEGMENTS_DIR" envDefault:"./segments"`
	MaxUploadBytes             int64         `env:"MAX_UPLOAD_BYTES" envDefault:"104857600"`
	SupportedExtensions        []string      `env:"SUPPORTED_EXTENSIONS" envDefault:".mp3" envSeparator:","`
	StreamMaxMessageBytes      int64         `env:"STREAM_MAX_MESSAGE_BYTES" envDefault:"10485760"`
	SampleRate                 int           `env:"SAMPLE_RATE" envDefault:"16000"`
	SilenceMinMs               int           `env:"SILENCE_MIN_MS" envDefault:"500"`
	SilenceThresholdDB         float64       `env:"SILENCE_THRESHOLD_DB" envDefault:"16"`
	SilenceSeekStepMs          int           `env:"SILENCE_SEEK_STEP_MS" envDefault:"1"`
	SentenceMinSeconds         float64       `env:"SENTENCE_MIN_SECONDS" envDefault:"1"`
	SentenceMaxSeconds         float64       `env:"SENTENCE_MAX_SECONDS" envDefault:"30"`
	TranscribeLanguage         string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	WorkerPoolSize             int           `env:"WORKER_POOL_SIZE" envDefault:"2"`
	AudioCodec                 string        `env:"AUDIO_CODEC" envDefault:"native"`
	FFmpegPath                 string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	STTProvider                string        `env:"STT_PROVIDER" envDefault:"google"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"short"`
	OpenAIAPIKey               string        `env:"OPENAI_API_KEY"`
	OpenAITranscribeModel      string        `env:"OPENAI_TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	SegmentsWebhookURL         string        `env:"SEGMENTS_WEBHOOK_URL"`
	TempPurgeInterval          time.Duration `env:"TEMP_PURGE_INTERVAL" envDefault:"1h"`
}

func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found; using process environment")
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                    raw.Env,
		HTTPAddr:               raw.HTTPAddr,
		DatabaseURL:            raw.DatabaseURL,
		SegmentsDir:            raw.SegmentsDir,
		MaxUploadBytes:         raw.MaxUploadBytes,
		SupportedExtensions:    raw.SupportedExtensions,
		StreamMaxMessageBytes:  raw.StreamMaxMessageBytes,
		SampleRate:             raw.SampleRate,
		SilenceMinMs:           raw.SilenceMinMs,
		SilenceThresholdDB:     raw.SilenceThresholdDB,
		SilenceSeekStepMs:      raw.SilenceSeekStepMs,
		SentenceMinSeconds:     raw.SentenceMinSeconds,
		SentenceMaxSeconds:     raw.SentenceMaxSeconds,
		TranscribeLanguage:     raw.TranscribeLanguage,
		WorkerPoolSize:         raw.WorkerPoolSize,
		AudioCodec:             raw.AudioCodec,
		FFmpegPath:             raw.FFmpegPath,
		STTProvider:            raw.STTProvider,
		GoogleCloudProjectID:   raw.GoogleCloudProjectID,
		GoogleCloudCredentials: raw.GoogleCloudCredentialsJSON,
		GoogleCloudLocation:    raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel: raw.GoogleCloudSpeechModel,
		OpenAIAPIKey:           raw.OpenAIAPIKey,
		OpenAITranscribeModel:  raw.OpenAITranscribeModel,
		SegmentsWebhookURL:     raw.SegmentsWebhookURL,
		TempPurgeInterval:      raw.TempPurgeInterval,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
