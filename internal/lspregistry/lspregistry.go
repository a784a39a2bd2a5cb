// Package lspregistry holds the per-language LSP server configuration
// table (spec §4.7, component C7): built-in entries for common
// languages, optionally overridden by a user config file, plus
// project-root discovery and executable availability checks.
package lspregistry

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

// ServerConfig is the recognized entry shape for one language (spec
// §4.7).
type ServerConfig struct {
	Language                  string          `toml:"-"`
	Command                   string          `toml:"command"`
	Args                      []string        `toml:"args"`
	InitializationOptions     json.RawMessage `toml:"initialization_options"`
	RootMarkers               []string        `toml:"root_markers"`
	InitializationTimeoutSecs int             `toml:"initialization_timeout_seconds"`
}

func (c ServerConfig) timeout() time.Duration {
	secs := c.InitializationTimeoutSecs
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// Registry holds one ServerConfig per language.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]ServerConfig
}

// New returns a Registry seeded with the built-in table, then
// overridden by userConfigPath if that file exists (empty path is a
// no-op).
func New(userConfigPath string) (*Registry, error) {
	r := &Registry{servers: builtinServers()}
	if userConfigPath == "" {
		return r, nil
	}
	if err := r.LoadUserConfig(userConfigPath); err != nil {
		return nil, err
	}
	return r, nil
}

// Register inserts or replaces the configuration for config.Language.
func (r *Registry) Register(config ServerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[config.Language] = config
}

// Get returns the configuration registered for language, if any.
func (r *Registry) Get(language string) (ServerConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.servers[language]
	return c, ok
}

// userConfigFile is the on-disk shape of a TOML override file: a
// top-level [languages.<name>] table per language.
type userConfigFile struct {
	Languages map[string]ServerConfig `toml:"languages"`
}

// LoadUserConfig merges entries from a TOML file at path into the
// registry, overwriting any built-in entry for the same language. A
// missing file is not an error.
func (r *Registry) LoadUserConfig(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var parsed userConfigFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for lang, cfg := range parsed.Languages {
		cfg.Language = lang
		r.servers[lang] = cfg
	}
	return nil
}

// FindProjectRoot walks filePath's parent chain looking for a
// directory whose entries match one of language's root markers
// (exact name or trailing-"*" glob). If nothing matches before
// reaching the filesystem root, it falls back to filePath's own
// parent directory.
func (r *Registry) FindProjectRoot(filePath, language string) (string, bool) {
	config, ok := r.Get(language)
	if !ok {
		return "", false
	}

	current := filepath.Dir(filePath)
	for {
		entries, err := os.ReadDir(current)
		if err == nil {
			for _, marker := range config.RootMarkers {
				for _, entry := range entries {
					if matchesMarker(entry.Name(), marker) {
						return current, true
					}
				}
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return filepath.Dir(filePath), true
}

func matchesMarker(name, pattern string) bool {
	if !hasGlobMeta(pattern) {
		return name == pattern
	}
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

func hasGlobMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', ']', '{', '}':
			return true
		}
	}
	return false
}

// IsAvailable reports whether language's configured command resolves
// on the executable search path.
func (r *Registry) IsAvailable(language string) bool {
	config, ok := r.Get(language)
	if !ok {
		return false
	}
	_, err := exec.LookPath(config.Command)
	return err == nil
}

// ListAvailable reports every registered language and whether its
// command currently resolves.
func (r *Registry) ListAvailable() map[string]bool {
	r.mu.RLock()
	langs := make([]string, 0, len(r.servers))
	for lang := range r.servers {
		langs = append(langs, lang)
	}
	r.mu.RUnlock()

	out := make(map[string]bool, len(langs))
	for _, lang := range langs {
		out[lang] = r.IsAvailable(lang)
	}
	return out
}
