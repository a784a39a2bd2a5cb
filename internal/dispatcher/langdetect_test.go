package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage_KnownExtensions(t *testing.T) {
	cases := map[string]string{
		"main.go":    "go",
		"lib.rs":     "rust",
		"index.tsx":  "typescript",
		"app.py":     "python",
		"Program.cs": "csharp",
		"Main.kt":    "kotlin",
	}
	for path, want := range cases {
		got, ok := DetectLanguage(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
}

func TestDetectLanguage_UnknownExtension(t *testing.T) {
	_, ok := DetectLanguage("README.md")
	assert.False(t, ok)
}

func TestDetectLanguage_IsCaseInsensitive(t *testing.T) {
	got, ok := DetectLanguage("Main.GO")
	assert.True(t, ok)
	assert.Equal(t, "go", got)
}
