// Package document extracts plain text from a folder of PDF files.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers     = 4
	defaultFileTimeout = 30 * time.Second
)

// ErrExtractTimeout marks a file whose extraction did not finish in time.
var ErrExtractTimeout = errors.New("pdf extraction timed out")

// Corpus is the concatenated text of every readable PDF in a folder.
type Corpus struct {
	Text    string
	Files   []string
	Skipped []string
}

// Chars reports the corpus size in bytes.
func (c Corpus) Chars() int { return len(c.Text) }

// Extractor reads PDFs. Files are extracted in parallel and joined in name order.
type Extractor struct {
	log         *slog.Logger
	workers     int
	fileTimeout time.Duration
	extract     func(path string) (string, error)
}

func NewExtractor(log *slog.Logger) *Extractor {
	return &Extractor{
		log:         log,
		workers:     defaultWorkers,
		fileTimeout: defaultFileTimeout,
		extract:     ExtractFile,
	}
}

// WithFileTimeout bounds each file; a file that takes longer is skipped.
// Non-positive values keep the default.
func (e *Extractor) WithFileTimeout(d time.Duration) *Extractor {
	if d > 0 {
		e.fileTimeout = d
	}
	return e
}

// ExtractDir concatenates the text of every *.pdf file directly inside dir,
// each file followed by a newline. Unreadable files are logged and skipped.
func (e *Extractor) ExtractDir(ctx context.Context, dir string) (Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Corpus{}, fmt.Errorf("reading documents dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	texts := make([]string, len(names))
	failed := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := e.extractFile(gctx, filepath.Join(dir, name))
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			texts[i], failed[i] = text, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Corpus{}, err
	}

	var corpus Corpus
	var b strings.Builder
	for i, name := range names {
		if failed[i] != nil {
			e.log.Warn("pdf extraction failed, skipping", "err", failed[i], "filename", name)
			corpus.Skipped = append(corpus.Skipped, name)
			continue
		}
		b.WriteString(texts[i])
		b.WriteString("\n")
		corpus.Files = append(corpus.Files, name)
	}
	corpus.Text = b.String()
	return corpus, nil
}

// extractFile runs the extraction on its own goroutine so a file the parser
// loops on cannot stall the folder. The goroutine is abandoned on timeout.
func (e *Extractor) extractFile(ctx context.Context, path string) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := e.extract(path)
		done <- result{text: text, err: err}
	}()

	timer := time.NewTimer(e.fileTimeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.text, r.err
	case <-timer.C:
		return "", fmt.Errorf("%w after %s", ErrExtractTimeout, e.fileTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ExtractFile returns the text of each non-empty page, one page per line.
// The pdf package panics on some malformed files; that is reported as an error.
func ExtractFile(path string) (_ string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf %s: %v", filepath.Base(path), r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var textBuilder strings.Builder
	numPages := reader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", pageNum, err)
		}
		if text == "" {
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
