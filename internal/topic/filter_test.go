package topic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterAllow(t *testing.T) {
	f := NewFilter(NewKeywordSet(DefaultKeywords))

	tests := []struct {
		name     string
		question string
		want     bool
	}{
		{"keyword present", "What is fentanyl?", true},
		{"no keyword", "What is the weather?", false},
		{"empty question", "", false},
		{"case insensitive", "Is NALOXONE available over the counter?", true},
		{"multi word keyword", "How did the Opioid Crisis start?", true},
		{"partial word match", "the opiates are prescribed", true},
		{"keyword inside longer word", "I feel helpless", true},
		{"whitespace only", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Allow(tt.question))
		})
	}
}

func TestFilterEveryKeywordMatches(t *testing.T) {
	f := NewFilter(NewKeywordSet(DefaultKeywords))
	for _, kw := range DefaultKeywords {
		assert.True(t, f.Allow("tell me about "+kw), kw)
	}
}

func TestNewKeywordSetNormalizes(t *testing.T) {
	set := NewKeywordSet([]string{" Heroin ", "", "  ", "Rehab"})
	assert.Equal(t, []string{"heroin", "rehab"}, set.Terms())
	assert.Equal(t, 2, set.Len())
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "keywords.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("keywords:\n  - Kratom\n  - methadone\n"), 0o644))

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("keywords: []\n"), 0o644))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("keywords: [unterminated"), 0o644))

	t.Run("default when path empty", func(t *testing.T) {
		set, err := LoadKeywords("")
		require.NoError(t, err)
		assert.Equal(t, len(DefaultKeywords), set.Len())
	})

	t.Run("custom file", func(t *testing.T) {
		set, err := LoadKeywords(valid)
		require.NoError(t, err)
		assert.Equal(t, []string{"kratom", "methadone"}, set.Terms())
		assert.True(t, NewFilter(set).Allow("Is KRATOM safe?"))
	})

	t.Run("empty list rejected", func(t *testing.T) {
		_, err := LoadKeywords(empty)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadKeywords(broken)
		assert.ErrorContains(t, err, "parsing keywords file")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadKeywords(filepath.Join(dir, "nope.yaml"))
		assert.ErrorContains(t, err, "reading keywords file")
	})
}
