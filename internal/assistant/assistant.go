// Package assistant runs one question through filter, prompt, inference and
// sanitizer, turning every failure into text the user can read.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"opioid-assistant/internal/cache"
	"opioid-assistant/internal/events"
	"opioid-assistant/internal/llm"
	"opioid-assistant/internal/prompt"
	"opioid-assistant/internal/sanitize"
	"opioid-assistant/internal/topic"
	"opioid-assistant/internal/voice"
)

// OffTopicMessage is shown when a question fails the topic filter.
const OffTopicMessage = "I can only respond to inquiries about opioids, addiction, overdose, or withdrawal."

const errorMessageFormat = "ERROR: Unable to connect to the assistant. Details: %s"

// ErrSpeechDisabled is returned by Speak when no synthesizer is configured.
var ErrSpeechDisabled = errors.New("speech output not configured")

// State is a step of a single interaction.
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateFiltering  State = "filtering"
	StateRejected   State = "rejected"
	StateQuerying   State = "querying"
	StateSanitizing State = "sanitizing"
	StateErroring   State = "erroring"
	StatePresenting State = "presenting"
)

// Outcome classifies how an interaction ended.
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeRejected     Outcome = "rejected"
	OutcomeError        Outcome = "error"
	OutcomeSpeechFailed Outcome = "speech_failed"
)

const (
	SourceText  = "text"
	SourceVoice = "voice"
)

// Result is what the presentation layer displays. Answer is always set.
type Result struct {
	ID       uuid.UUID
	Source   string
	Question string
	Answer   string
	Outcome  Outcome
	Cached   bool
	Err      error
	Trace    []State
}

func (r *Result) enter(s State) { r.Trace = append(r.Trace, s) }

// Options wires the pipeline stages. Transcriber, Synthesizer, Cache and
// Events are optional.
type Options struct {
	Filter      *topic.Filter
	Prompts     *prompt.Builder
	LLM         llm.Client
	Sanitizer   *sanitize.Sanitizer
	Transcriber voice.Transcriber
	Synthesizer voice.Synthesizer
	Cache       cache.Cache
	CacheTTL    time.Duration
	CacheScope  string // provider and endpoint; part of every cache key
	Events      events.Publisher
	Log         *slog.Logger
}

// Assistant is safe for concurrent use; it holds no per-interaction state.
type Assistant struct {
	filter      *topic.Filter
	prompts     *prompt.Builder
	llm         llm.Client
	sanitizer   *sanitize.Sanitizer
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	cache       cache.Cache
	cacheTTL    time.Duration
	cacheScope  string
	events      events.Publisher
	log         *slog.Logger
	now         func() time.Time
}

func New(opts Options) *Assistant {
	a := &Assistant{
		filter:      opts.Filter,
		prompts:     opts.Prompts,
		llm:         opts.LLM,
		sanitizer:   opts.Sanitizer,
		transcriber: opts.Transcriber,
		synthesizer: opts.Synthesizer,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		cacheScope:  opts.CacheScope,
		events:      opts.Events,
		log:         opts.Log,
		now:         time.Now,
	}
	if a.transcriber == nil {
		a.transcriber = voice.NoopTranscriber{}
	}
	if a.cache == nil {
		a.cache = cache.NewNoOpCache()
	}
	if a.events == nil {
		a.events = events.Noop{}
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

// CanSpeak reports whether answers can be synthesized.
func (a *Assistant) CanSpeak() bool { return a.synthesizer != nil }

// Ask answers a typed question.
func (a *Assistant) Ask(ctx context.Context, question string) Result {
	start := a.now()
	res := Result{ID: uuid.New(), Source: SourceText, Question: question}
	res.enter(StateIdle)
	res.enter(StateCapturing)
	a.answer(ctx, &res)
	a.finish(ctx, &res, start)
	return res
}

// AskAudio transcribes a recording and answers it as a question. A failed
// transcription ends the interaction with the recognizer's failure text.
func (a *Assistant) AskAudio(ctx context.Context, audio []byte) Result {
	start := a.now()
	res := Result{ID: uuid.New(), Source: SourceVoice}
	res.enter(StateIdle)
	res.enter(StateCapturing)

	text, ok := voice.Recognize(ctx, a.transcriber, audio)
	if !ok {
		res.enter(StateErroring)
		res.Answer = text
		res.Outcome = OutcomeSpeechFailed
		res.enter(StatePresenting)
		a.finish(ctx, &res, start)
		return res
	}
	res.Question = text
	a.answer(ctx, &res)
	a.finish(ctx, &res, start)
	return res
}

// Speak synthesizes text and passes the clip to play; the clip is removed afterwards.
func (a *Assistant) Speak(ctx context.Context, text string, play func(*voice.Clip) error) error {
	if a.synthesizer == nil {
		return ErrSpeechDisabled
	}
	return voice.WithClip(ctx, a.synthesizer, text, play)
}

func (a *Assistant) answer(ctx context.Context, res *Result) {
	res.enter(StateFiltering)
	if !a.filter.Allow(res.Question) {
		res.enter(StateRejected)
		res.Answer = OffTopicMessage
		res.Outcome = OutcomeRejected
		res.enter(StatePresenting)
		return
	}

	res.enter(StateQuerying)
	payload := a.prompts.Build(res.Question)
	key := cache.Key(a.cacheScope, payload)
	if hit := a.lookup(ctx, key); hit != nil {
		res.enter(StateSanitizing)
		res.Answer = a.sanitizer.Clean(hit.Text)
		res.Outcome = OutcomeAnswered
		res.Cached = true
		res.enter(StatePresenting)
		return
	}

	raw, err := a.llm.Complete(ctx, payload)
	if err != nil {
		res.enter(StateErroring)
		res.Err = err
		res.Answer = fmt.Sprintf(errorMessageFormat, err.Error())
		res.Outcome = OutcomeError
		res.enter(StatePresenting)
		a.log.Error("inference failed", "id", res.ID, "err", err)
		return
	}

	res.enter(StateSanitizing)
	res.Answer = a.sanitizer.Clean(raw)
	res.Outcome = OutcomeAnswered
	res.enter(StatePresenting)

	if raw != llm.NoResponse {
		a.store(ctx, key, &cache.Answer{Text: res.Answer, Model: payload.Model, CreatedAt: a.now()})
	}
}

func (a *Assistant) lookup(ctx context.Context, key string) *cache.Answer {
	hit, err := a.cache.GetAnswer(ctx, key)
	if err != nil {
		a.log.Warn("cache read failed", "err", err)
		return nil
	}
	return hit
}

func (a *Assistant) store(ctx context.Context, key string, ans *cache.Answer) {
	if err := a.cache.SetAnswer(ctx, key, ans, a.cacheTTL); err != nil {
		// Log cache write failure but don't fail the interaction
		a.log.Warn("failed to cache answer", "err", err)
	}
}

func (a *Assistant) finish(ctx context.Context, res *Result, start time.Time) {
	latency := a.now().Sub(start)
	a.log.Info("interaction",
		"id", res.ID,
		"source", res.Source,
		"outcome", res.Outcome,
		"cached", res.Cached,
		"duration_ms", latency.Milliseconds(),
	)
	ev := events.Interaction{
		ID:            res.ID,
		Source:        res.Source,
		Outcome:       string(res.Outcome),
		Cached:        res.Cached,
		QuestionChars: utf8.RuneCountInString(res.Question),
		LatencyMS:     latency.Milliseconds(),
		At:            start,
	}
	if err := events.PublishWithRetry(ctx, a.events, ev, 3, 50*time.Millisecond); err != nil {
		a.log.Warn("failed to publish interaction event", "id", res.ID, "err", err)
	}
}
