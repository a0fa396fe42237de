package main

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"opioid-assistant/internal/app"
	"opioid-assistant/internal/assistant"
	"opioid-assistant/internal/httputil"
	"opioid-assistant/internal/voice"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const shutdownTimeout = 10 * time.Second

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
	Speak    bool   `json:"speak"`
}

type askResponse struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Transcript string `json:"transcript,omitempty"`
	Answer     string `json:"answer"`
	Outcome    string `json:"outcome"`
	Cached     bool   `json:"cached"`
	Audio      string `json:"audio,omitempty"` // base64
	AudioType  string `json:"audio_type,omitempty"`
}

type pageData struct {
	Question     string
	Answer       string
	Outcome      string
	VoiceEnabled bool
	AudioSrc     template.URL
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("assistant listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if cerr := deps.Close(); cerr != nil {
		deps.Log.Warn("failed to close dependencies", "err", cerr)
	}
	if err != nil {
		deps.Log.Error("server failed", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("assistant stopped")
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log, deps.Config.TrustProxy)
	limit := httputil.NewRateLimiter(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst).Middleware(deps.Log)

	r.Get("/", indexHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	r.Get("/api/documents", documentsHandler(deps))
	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/ask", askFormHandler(deps))
		r.Post("/ask/voice", askVoiceFormHandler(deps))
		r.Post("/api/ask", apiAskHandler(deps))
		r.Post("/api/ask/voice", apiAskVoiceHandler(deps))
	})
	return r
}

func indexHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(deps, w, pageData{VoiceEnabled: voiceEnabled(deps)})
	}
}

func askFormHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		question := strings.TrimSpace(r.FormValue("question"))
		if question == "" {
			httputil.Fail(deps.Log, w, "question is required", nil, http.StatusBadRequest)
			return
		}
		res := deps.Assistant.Ask(r.Context(), question)
		render(deps, w, resultPage(r.Context(), deps, res))
	}
}

func askVoiceFormHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audio, ok := readAudio(deps, w, r)
		if !ok {
			return
		}
		res := deps.Assistant.AskAudio(r.Context(), audio)
		render(deps, w, resultPage(r.Context(), deps, res))
	}
}

func apiAskHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		req.Question = strings.TrimSpace(req.Question)

		// Validate request
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		res := deps.Assistant.Ask(r.Context(), req.Question)
		resp := toResponse(res)
		if req.Speak {
			resp.Audio, resp.AudioType = speak(r.Context(), deps, res)
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func apiAskVoiceHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audio, ok := readAudio(deps, w, r)
		if !ok {
			return
		}
		res := deps.Assistant.AskAudio(r.Context(), audio)
		resp := toResponse(res)
		resp.Transcript = res.Question
		if r.FormValue("speak") == "true" {
			resp.Audio, resp.AudioType = speak(r.Context(), deps, res)
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func documentsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files := deps.Documents.Files
		if files == nil {
			files = []string{}
		}
		skipped := deps.Documents.Skipped
		if skipped == nil {
			skipped = []string{}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"files":   files,
			"skipped": skipped,
			"chars":   deps.Documents.Chars(),
		})
	}
}

// readAudio pulls the "audio" part out of a multipart upload, bounded by MaxUploadSize.
func readAudio(deps app.Deps, w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	maxSize := deps.Config.MaxUploadSize

	// Validate size before parsing
	if r.ContentLength > maxSize {
		httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxSize), nil, http.StatusBadRequest)
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	file, header, err := r.FormFile("audio")
	if err != nil {
		httputil.Fail(deps.Log, w, "audio file is required", err, http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	if header.Size > maxSize {
		httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxSize), nil, http.StatusBadRequest)
		return nil, false
	}
	audio, err := io.ReadAll(file)
	if err != nil {
		httputil.Fail(deps.Log, w, "failed to read audio", err, http.StatusBadRequest)
		return nil, false
	}
	return audio, true
}

// speak returns the answer as base64 audio, or empty strings when speech is
// off or synthesis fails.
func speak(ctx context.Context, deps app.Deps, res assistant.Result) (string, string) {
	if !deps.Assistant.CanSpeak() || res.Outcome == assistant.OutcomeSpeechFailed {
		return "", ""
	}
	var audio, contentType string
	err := deps.Assistant.Speak(ctx, res.Answer, func(clip *voice.Clip) error {
		b, err := clip.Bytes()
		if err != nil {
			return err
		}
		audio = base64.StdEncoding.EncodeToString(b)
		contentType = clip.ContentType
		return nil
	})
	if err != nil {
		deps.Log.Warn("speech synthesis failed", "id", res.ID, "err", err)
		return "", ""
	}
	return audio, contentType
}

func toResponse(res assistant.Result) askResponse {
	return askResponse{
		ID:       res.ID.String(),
		Question: res.Question,
		Answer:   res.Answer,
		Outcome:  string(res.Outcome),
		Cached:   res.Cached,
	}
}

func resultPage(ctx context.Context, deps app.Deps, res assistant.Result) pageData {
	page := pageData{
		Question:     res.Question,
		Answer:       res.Answer,
		Outcome:      string(res.Outcome),
		VoiceEnabled: voiceEnabled(deps),
	}
	if audio, contentType := speak(ctx, deps, res); audio != "" {
		page.AudioSrc = template.URL("data:" + contentType + ";base64," + audio)
	}
	return page
}

func voiceEnabled(deps app.Deps) bool {
	return deps.Config.VoiceProvider != "" && deps.Config.VoiceProvider != "none"
}

func render(deps app.Deps, w http.ResponseWriter, page pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, page); err != nil {
		deps.Log.Error("failed to render page", "err", err)
	}
}
