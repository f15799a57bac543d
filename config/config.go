// Package config persists application settings as a flat JSON document
// under the per-user config directory (~/.config/quill on Linux).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the persisted key-value document. API keys left empty
// here fall back to the environment at load time.
type Settings struct {
	APIKey          string `json:"api_key"`
	GroqAPIKey      string `json:"groq_api_key"`
	Provider        string `json:"provider"`
	DefaultDevice   string `json:"default_device"`
	OutputDirectory string `json:"output_directory"`
	LastMode        string `json:"last_mode"`
	Language        string `json:"language"`
	AudioFormat     string `json:"audio_format"`
}

// Store owns the settings file and the cache directory for in-flight
// recordings.
type Store struct {
	mu       sync.Mutex
	dir      string
	settings Settings
}

func defaultSettings() Settings {
	home, _ := os.UserHomeDir()
	return Settings{
		Provider:        "",
		OutputDirectory: filepath.Join(home, "Documents"),
		LastMode:        "basic_cleanup",
		AudioFormat:     "flac",
	}
}

// Dir resolves the application config directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	dir := filepath.Join(base, "quill")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	return dir, nil
}

// Load reads settings.json from dir. An absent or malformed file
// yields defaults; keys absent from settings fall back to the
// OPENAI_API_KEY and GROQ_API_KEY environment variables.
func Load(dir string) *Store {
	s := &Store{dir: dir, settings: defaultSettings()}

	data, err := os.ReadFile(s.path())
	if err == nil {
		loaded := defaultSettings()
		if json.Unmarshal(data, &loaded) == nil {
			s.settings = loaded
		}
	}

	if s.settings.APIKey == "" {
		s.settings.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if s.settings.GroqAPIKey == "" {
		s.settings.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	}
	return s
}

func (s *Store) path() string { return filepath.Join(s.dir, "settings.json") }

// Dir returns the config directory the store was loaded from.
func (s *Store) Dir() string { return s.dir }

// CacheDir returns the recording cache directory, creating it if needed.
func (s *Store) CacheDir() (string, error) {
	dir := filepath.Join(s.dir, "cache")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	return dir, nil
}

// ClearCache removes all cached recording files.
func (s *Store) ClearCache() error {
	dir := filepath.Join(s.dir, "cache")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update applies fn to the settings and persists the result.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
	return s.save()
}

// save writes settings.json atomically. Callers hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return os.Rename(tmp, s.path())
}
