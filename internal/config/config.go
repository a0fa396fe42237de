package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// ErrConfigurationMissing reports an absent or empty credential. It is fatal at startup.
var ErrConfigurationMissing = errors.New("configuration missing")

// DefaultInstructions is the expert header the assistant can prepend to a question.
const DefaultInstructions = `As an opioid education expert, provide clear and precise answers using the given document.
If insufficient data is available, respond with: "I don't have enough information."`

// Config holds runtime configuration, read once at startup.
type Config struct {
	// Server
	Port           int     `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`
	MaxUploadSize  int64   `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
	TrustProxy     bool    `env:"TRUST_PROXY_HEADERS" envDefault:"false"` // honor X-Forwarded-For behind a trusted proxy

	// Credentials
	APIKey      string `env:"API_KEY" validate:"required"`
	APIEndpoint string `env:"API_ENDPOINT" validate:"required,url"`

	// Inference
	LLMProvider        string        `env:"LLM_PROVIDER" envDefault:"http" validate:"oneof=http openai"` // "http" (any chat-completions endpoint) or "openai" (SDK)
	LLMModel           string        `env:"LLM_MODEL" envDefault:"meta-llama/llama-3-8b-instruct"`
	InferenceTimeout   time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"10s"`
	AttachInstructions bool          `env:"ATTACH_INSTRUCTIONS" envDefault:"false"`
	Instructions       string        `env:"INSTRUCTIONS"`

	// Filtering and post-processing
	KeywordsFile  string   `env:"KEYWORDS_FILE"`
	FillerPhrases []string `env:"FILLER_PHRASES" envDefault:"Based on the document|According to the document" envSeparator:"|"`

	// Documents
	DocsDir         string        `env:"DOCS_DIR"`
	DocsFileTimeout time.Duration `env:"DOCS_FILE_TIMEOUT" envDefault:"30s"`

	// Voice
	VoiceProvider string        `env:"VOICE_PROVIDER" envDefault:"none" validate:"oneof=none openai"`
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	STTModel      string        `env:"STT_MODEL" envDefault:"whisper-1"`
	STTLanguage   string        `env:"STT_LANGUAGE" envDefault:"en"`
	TTSModel      string        `env:"TTS_MODEL" envDefault:"tts-1"`
	TTSVoice      string        `env:"TTS_VOICE" envDefault:"alloy"`
	SpeechTimeout time.Duration `env:"SPEECH_TIMEOUT" envDefault:"30s"`

	// Cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none" validate:"oneof=none redis"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	// Events
	EventsProvider string `env:"EVENTS_PROVIDER" envDefault:"none" validate:"oneof=none nats"`
	NATSURL        string `env:"NATS_URL"`
	EventsSubject  string `env:"EVENTS_SUBJECT" envDefault:"assistant.interactions"`
}

var validate = validator.New()

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APIEndpoint = strings.TrimSpace(cfg.APIEndpoint)
	if cfg.Instructions == "" {
		cfg.Instructions = DefaultInstructions
	}
	return cfg
}

// Validate checks credentials and provider selections.
// A missing API_KEY or API_ENDPOINT is reported as ErrConfigurationMissing.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: %s is required", ErrConfigurationMissing, envName(fe.Field()))
		}
	}
	fe := verrs[0]
	return fmt.Errorf("invalid %s: failed %q check", envName(fe.Field()), fe.Tag())
}

func envName(field string) string {
	switch field {
	case "APIKey":
		return "API_KEY"
	case "APIEndpoint":
		return "API_ENDPOINT"
	case "LLMProvider":
		return "LLM_PROVIDER"
	case "VoiceProvider":
		return "VOICE_PROVIDER"
	case "CacheProvider":
		return "CACHE_PROVIDER"
	case "EventsProvider":
		return "EVENTS_PROVIDER"
	case "Port":
		return "PORT"
	default:
		return field
	}
}
