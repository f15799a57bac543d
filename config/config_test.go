package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	s := Load(t.TempDir())
	got := s.Get()
	if got.LastMode != "basic_cleanup" {
		t.Errorf("LastMode = %q", got.LastMode)
	}
	if got.AudioFormat != "flac" {
		t.Errorf("AudioFormat = %q", got.AudioFormat)
	}
	if got.APIKey != "" {
		t.Errorf("APIKey should be empty, got %q", got.APIKey)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Load(dir)

	err := s.Update(func(c *Settings) {
		c.APIKey = "sk-test"
		c.Provider = "groq"
		c.LastMode = "bullet_summary"
		c.Language = "de"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	s2 := Load(dir)
	got := s2.Get()
	if got.APIKey != "sk-test" || got.Provider != "groq" {
		t.Errorf("reloaded settings = %+v", got)
	}
	if got.LastMode != "bullet_summary" || got.Language != "de" {
		t.Errorf("reloaded settings = %+v", got)
	}
}

func TestLoadMalformedFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := Load(dir)
	if s.Get().LastMode != "basic_cleanup" {
		t.Errorf("malformed file did not fall back to defaults: %+v", s.Get())
	}
}

func TestEnvKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("GROQ_API_KEY", "gsk-from-env")

	s := Load(t.TempDir())
	got := s.Get()
	if got.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want env fallback", got.APIKey)
	}
	if got.GroqAPIKey != "gsk-from-env" {
		t.Errorf("GroqAPIKey = %q, want env fallback", got.GroqAPIKey)
	}
}

func TestSettingsFileWinsOverEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	dir := t.TempDir()

	s := Load(dir)
	if err := s.Update(func(c *Settings) { c.APIKey = "sk-saved" }); err != nil {
		t.Fatal(err)
	}

	s2 := Load(dir)
	if got := s2.Get().APIKey; got != "sk-saved" {
		t.Errorf("APIKey = %q, want saved value over env", got)
	}
}

func TestCacheDir(t *testing.T) {
	dir := t.TempDir()
	s := Load(dir)

	cache, err := s.CacheDir()
	if err != nil {
		t.Fatalf("CacheDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cache, "rec-1.flac"), []byte("x"), 0o600); err != nil {
		t.Fatalf("cache dir not writable: %v", err)
	}

	if err := s.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	entries, _ := os.ReadDir(cache)
	if len(entries) != 0 {
		t.Errorf("cache not empty after ClearCache: %d entries", len(entries))
	}
}
