package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"opioid-assistant/internal/assistant"
	"opioid-assistant/internal/cache"
	"opioid-assistant/internal/config"
	"opioid-assistant/internal/document"
	"opioid-assistant/internal/events"
	"opioid-assistant/internal/llm"
	"opioid-assistant/internal/logger"
	"opioid-assistant/internal/prompt"
	"opioid-assistant/internal/retry"
	"opioid-assistant/internal/sanitize"
	"opioid-assistant/internal/topic"
	"opioid-assistant/internal/voice"
)

const (
	connectAttempts = 5
	connectBackoff  = 200 * time.Millisecond
	connectMaxWait  = 2 * time.Second
)

// Deps bundles the runtime dependencies of the assistant service.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Assistant *assistant.Assistant
	Documents document.Corpus

	closers []func() error
}

// Close releases network clients in reverse construction order.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// Build loads env, config, and shared components. A missing .env file is fine;
// missing credentials are reported as config.ErrConfigurationMissing.
func Build(ctx context.Context) (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return Deps{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return Assemble(ctx, cfg, log)
}

// Assemble constructs every component from an already validated config.
func Assemble(ctx context.Context, cfg config.Config, log *slog.Logger) (Deps, error) {
	deps := Deps{Config: cfg, Log: log}
	fail := func(err error) (Deps, error) {
		if cerr := deps.Close(); cerr != nil {
			log.Warn("cleanup after failed build", "err", cerr)
		}
		return Deps{}, err
	}

	keywords, err := topic.LoadKeywords(cfg.KeywordsFile)
	if err != nil {
		return fail(fmt.Errorf("failed to load keywords: %w", err))
	}
	log.Info("topic filter ready", "keywords", keywords.Len())

	llmClient, err := buildLLM(cfg, log, &deps)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize LLM: %w", err))
	}
	transcriber, synthesizer, err := buildVoice(cfg, log)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize voice: %w", err))
	}
	c, err := buildCache(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize cache: %w", err))
	}
	deps.closers = append(deps.closers, c.Close)
	pub, err := buildEvents(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize events: %w", err))
	}
	deps.closers = append(deps.closers, pub.Close)

	if cfg.DocsDir != "" {
		corpus, err := document.NewExtractor(log).WithFileTimeout(cfg.DocsFileTimeout).ExtractDir(ctx, cfg.DocsDir)
		if err != nil {
			return fail(fmt.Errorf("failed to extract documents: %w", err))
		}
		log.Info("documents extracted", "files", len(corpus.Files), "skipped", len(corpus.Skipped), "chars", corpus.Chars())
		deps.Documents = corpus
	}

	deps.Assistant = assistant.New(assistant.Options{
		Filter:      topic.NewFilter(keywords),
		Prompts:     prompt.NewBuilder(cfg.LLMModel, cfg.Instructions, cfg.AttachInstructions),
		LLM:         llmClient,
		Sanitizer:   sanitize.New(cfg.FillerPhrases),
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Cache:       c,
		CacheTTL:    cfg.CacheTTL,
		CacheScope:  cfg.LLMProvider + " " + cfg.APIEndpoint,
		Events:      pub,
		Log:         log,
	})
	return deps, nil
}

func buildLLM(cfg config.Config, log *slog.Logger, deps *Deps) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "http", "":
		client, err := llm.NewHTTPClient(cfg.APIEndpoint, cfg.APIKey, cfg.InferenceTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize HTTP client: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		log.Info("using HTTP LLM client", "model", cfg.LLMModel, "timeout", cfg.InferenceTimeout)
		return client, nil
	case "openai":
		client, err := llm.NewOpenAIClient(cfg.APIEndpoint, cfg.APIKey, cfg.InferenceTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel, "base_url", llm.BaseURL(cfg.APIEndpoint))
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: http, openai)", cfg.LLMProvider)
	}
}

func buildVoice(cfg config.Config, log *slog.Logger) (voice.Transcriber, voice.Synthesizer, error) {
	switch cfg.VoiceProvider {
	case "none", "":
		log.Info("voice disabled")
		return voice.NoopTranscriber{}, nil, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required when VOICE_PROVIDER=openai")
		}
		stt, err := voice.NewWhisperTranscriber(cfg.OpenAIKey, cfg.STTModel, cfg.STTLanguage, cfg.SpeechTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize transcriber: %w", err)
		}
		tts, err := voice.NewOpenAISynthesizer(cfg.OpenAIKey, cfg.TTSModel, cfg.TTSVoice, cfg.SpeechTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize synthesizer: %w", err)
		}
		log.Info("using OpenAI voice", "stt_model", cfg.STTModel, "tts_model", cfg.TTSModel)
		return stt, tts, nil
	default:
		return nil, nil, fmt.Errorf("invalid VOICE_PROVIDER: %s (valid options: none, openai)", cfg.VoiceProvider)
	}
}

func buildCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "none", "":
		log.Info("answer cache disabled")
		return cache.NewNoOpCache(), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when CACHE_PROVIDER=redis")
		}
		var rc *cache.RedisCache
		err := retry.Do(ctx, connectAttempts, connectBackoff, connectMaxWait, func() error {
			var err error
			rc, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Info("using Redis cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return rc, nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: none, redis)", cfg.CacheProvider)
	}
}

func buildEvents(ctx context.Context, cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsProvider {
	case "none", "":
		return events.Noop{}, nil
	case "nats":
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("NATS_URL is required when EVENTS_PROVIDER=nats")
		}
		var nc *nats.Conn
		err := retry.Do(ctx, connectAttempts, connectBackoff, connectMaxWait, func() error {
			var err error
			nc, err = nats.Connect(cfg.NATSURL, nats.Name("opioid-assistant"))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS events", "subject", cfg.EventsSubject)
		return events.NewNATS(log, nc, cfg.EventsSubject), nil
	default:
		return nil, fmt.Errorf("invalid EVENTS_PROVIDER: %s (valid options: none, nats)", cfg.EventsProvider)
	}
}
