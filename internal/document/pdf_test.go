package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opioid-assistant/internal/logger"
)

// writePDF writes a minimal single-font PDF with one text line per page.
func writePDF(t *testing.T, path string, pages ...string) {
	t.Helper()

	var objects []string
	// 1: catalog, 2: page tree, 3: font, then page/content pairs.
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.pdf")
	writePDF(t, path, "Naloxone reverses overdose", "Call for help")

	text, err := ExtractFile(path)

	require.NoError(t, err)
	assert.Equal(t, "Naloxone reverses overdose\nCall for help\n", text)
}

func TestExtractFileRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some text, definitely not a pdf document at all"), 0o644))

	_, err := ExtractFile(path)
	assert.Error(t, err)
}

func TestExtractDir(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "b.pdf"), "Second file")
	writePDF(t, filepath.Join(dir, "a.pdf"), "First file", "page two")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not really a pdf"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	corpus, err := NewExtractor(logger.Discard()).ExtractDir(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, "First file\npage two\n\nSecond file\n\n", corpus.Text)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, corpus.Files)
	assert.Equal(t, []string{"broken.pdf"}, corpus.Skipped)
	assert.Equal(t, len(corpus.Text), corpus.Chars())
}

func TestExtractDirEmpty(t *testing.T) {
	corpus, err := NewExtractor(logger.Discard()).ExtractDir(context.Background(), t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, corpus.Text)
	assert.Empty(t, corpus.Files)
}

func TestExtractDirMissing(t *testing.T) {
	_, err := NewExtractor(logger.Discard()).ExtractDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "reading documents dir")
}

func TestExtractDirCanceled(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), "text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(logger.Discard()).ExtractDir(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

// pointXrefAt rewrites the xref entry of object id to the offset of object 1,
// so resolving it finds the wrong object.
func pointXrefAt(t *testing.T, path string, id int) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	start := bytes.Index(data, []byte("\nxref\n"))
	require.Positive(t, start)
	header := bytes.Index(data[start:], []byte("65535 f \n"))
	require.Positive(t, header)
	entries := start + header + len("65535 f \n")
	// each entry is 20 bytes; entry 0 is the free-list head consumed above
	first := entries
	target := entries + 20*(id-1)
	copy(data[target:target+10], data[first:first+10])

	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestExtractFileMalformedXref(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	writePDF(t, path, "Naloxone reverses overdose")
	pointXrefAt(t, path, 2)

	var text string
	var err error
	assert.NotPanics(t, func() { text, err = ExtractFile(path) })
	assert.ErrorContains(t, err, "malformed pdf corrupt.pdf")
	assert.Empty(t, text)
}

func TestExtractDirSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), "Withdrawal support")
	writePDF(t, filepath.Join(dir, "b.pdf"), "Corrupted")
	pointXrefAt(t, filepath.Join(dir, "b.pdf"), 2)

	corpus, err := NewExtractor(logger.Discard()).ExtractDir(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, corpus.Files)
	assert.Equal(t, []string{"b.pdf"}, corpus.Skipped)
	assert.Equal(t, "Withdrawal support\n\n", corpus.Text)
}

func TestExtractDirSkipsStalledFile(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), "Overdose signs")
	writePDF(t, filepath.Join(dir, "stuck.pdf"), "never read")

	release := make(chan struct{})
	defer close(release)
	e := NewExtractor(logger.Discard()).WithFileTimeout(50 * time.Millisecond)
	e.extract = func(path string) (string, error) {
		if filepath.Base(path) == "stuck.pdf" {
			<-release
		}
		return ExtractFile(path)
	}

	corpus, err := e.ExtractDir(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, corpus.Files)
	assert.Equal(t, []string{"stuck.pdf"}, corpus.Skipped)
}

func TestWithFileTimeoutKeepsDefault(t *testing.T) {
	e := NewExtractor(logger.Discard()).WithFileTimeout(0)
	assert.Equal(t, defaultFileTimeout, e.fileTimeout)
}
