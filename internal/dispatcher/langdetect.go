package dispatcher

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps a lowercased file extension to the
// registered language name, extending the teacher's httpLanguageFromPath
// switch into a table covering every language in internal/lspregistry.
var extensionLanguages = map[string]string{
	".go":    "go",
	".rs":    "rust",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".py":    "python",
	".pyi":   "python",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".scala": "scala",
	".hs":    "haskell",
	".ex":    "elixir",
	".exs":   "elixir",
	".clj":   "clojure",
	".cljs":  "clojure",
	".lua":   "lua",
	".zig":   "zig",
}

// DetectLanguage infers a registered language name from filePath's
// extension, returning ("", false) for unrecognized extensions.
func DetectLanguage(filePath string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filePath))
	lang, ok := extensionLanguages[ext]
	return lang, ok
}
