package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultSpeechTimeout = 30 * time.Second

func newSDKClient(apiKey string, opts []option.RequestOption) (*openai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	cli := openai.NewClient(opts...)
	return &cli, nil
}

// WhisperTranscriber calls the OpenAI audio transcription endpoint.
type WhisperTranscriber struct {
	client   *openai.Client
	model    openai.AudioModel
	language string
	timeout  time.Duration
}

func NewWhisperTranscriber(apiKey, model, language string, timeout time.Duration, opts ...option.RequestOption) (*WhisperTranscriber, error) {
	cli, err := newSDKClient(apiKey, opts)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = openai.AudioModelWhisper1
	}
	if timeout <= 0 {
		timeout = defaultSpeechTimeout
	}
	return &WhisperTranscriber{client: cli, model: model, language: language, timeout: timeout}, nil
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
		Model: w.model,
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}
	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return "", fmt.Errorf("%w: %w", ErrUnrecognized, err)
		}
		return "", fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	return resp.Text, nil
}

// OpenAISynthesizer calls the OpenAI text-to-speech endpoint and returns MP3 clips.
type OpenAISynthesizer struct {
	client  *openai.Client
	model   openai.SpeechModel
	voice   openai.AudioSpeechNewParamsVoice
	timeout time.Duration
}

func NewOpenAISynthesizer(apiKey, model, voiceName string, timeout time.Duration, opts ...option.RequestOption) (*OpenAISynthesizer, error) {
	cli, err := newSDKClient(apiKey, opts)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = openai.SpeechModelTTS1
	}
	if voiceName == "" {
		voiceName = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	if timeout <= 0 {
		timeout = defaultSpeechTimeout
	}
	return &OpenAISynthesizer{
		client:  cli,
		model:   model,
		voice:   openai.AudioSpeechNewParamsVoice(voiceName),
		timeout: timeout,
	}, nil
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (*Clip, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          s.model,
		Voice:          s.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	return NewClip(resp.Body, "assistant-speech-*.mp3", "audio/mpeg")
}
