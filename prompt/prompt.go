// Package prompt manages the library of refinement prompts: six
// built-in modes plus user-defined ones persisted to prompts.json.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound reports a lookup of an unknown prompt ID.
	ErrNotFound = errors.New("prompt not found")
	// ErrReadOnly reports an attempt to modify or delete a built-in mode.
	ErrReadOnly = errors.New("built-in prompt is read-only")
)

// Prompt is a single refinement mode. RequiresJSON asks the
// chat-completion endpoint for a structured JSON response.
type Prompt struct {
	Name         string `json:"name"`
	Prompt       string `json:"prompt"`
	RequiresJSON bool   `json:"requires_json"`
}

var defaults = map[string]Prompt{
	"basic_cleanup": {
		Name:   "Basic Cleanup",
		Prompt: "Take the following transcript and refine it to add missing punctuation, resolve typos, add paragraph spacing, and generally enhance the presentation of the text while preserving the original meaning.",
	},
	"extract_todos": {
		Name:   "Extract To-Dos",
		Prompt: "Extract only the to-do items from the following dictated text. Format them as a markdown list with checkboxes. For example: '- [ ] Task description'.",
	},
	"shakespearean": {
		Name:   "Shakespearean",
		Prompt: "Take the following dictated text and return it in Shakespearean English, maintaining the original meaning but using the style, vocabulary, and sentence structure typical of Shakespeare's works.",
	},
	"meeting_minutes": {
		Name:   "Meeting Minutes",
		Prompt: "Format the following transcript as professional meeting minutes. Identify key discussion points, decisions made, and action items. Use appropriate headings and structure.",
	},
	"bullet_summary": {
		Name:   "Bullet Summary",
		Prompt: "Summarize the following transcript as concise bullet points, capturing the main ideas and important details.",
	},
	"technical_documentation": {
		Name:   "Technical Documentation",
		Prompt: "Convert the following dictated text into technical documentation format. Use appropriate headings, code blocks for any technical elements, and clear explanations.",
	},
}

// Library is the prompt collection backed by a JSON file. Built-in
// modes are always present and cannot be changed or removed by ID.
type Library struct {
	mu    sync.Mutex
	path  string
	modes map[string]Prompt
}

// Load reads prompts.json from dir, falling back to the built-in modes
// when the file is absent or unreadable. The file is created on first
// load so users can inspect and edit it.
func Load(dir string) *Library {
	l := &Library{
		path:  filepath.Join(dir, "prompts.json"),
		modes: make(map[string]Prompt, len(defaults)),
	}

	data, err := os.ReadFile(l.path)
	if err == nil {
		err = json.Unmarshal(data, &l.modes)
	}
	if err != nil {
		// Absent or malformed file, start from defaults.
		l.modes = make(map[string]Prompt, len(defaults))
	}

	// Built-ins always win over whatever the file holds for their IDs.
	for id, p := range defaults {
		l.modes[id] = p
	}
	if err != nil {
		l.save()
	}
	return l
}

// Get looks up a prompt by ID.
func (l *Library) Get(id string) (Prompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.modes[id]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

// Add stores a user prompt under a normalized ID and persists the
// library. It returns the ID actually used. Built-in IDs are rejected.
func (l *Library) Add(id, name, text string, requiresJSON bool) (string, error) {
	id = NormalizeID(id)
	if id == "" {
		return "", errors.New("prompt ID must not be empty")
	}
	if _, ok := defaults[id]; ok {
		return "", fmt.Errorf("%w: %q", ErrReadOnly, id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.modes[id] = Prompt{Name: name, Prompt: text, RequiresJSON: requiresJSON}
	return id, l.save()
}

// Delete removes a user prompt. Built-in modes cannot be deleted.
func (l *Library) Delete(id string) error {
	if _, ok := defaults[id]; ok {
		return fmt.Errorf("%w: %q", ErrReadOnly, id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.modes[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(l.modes, id)
	return l.save()
}

// ResetDefaults drops all user prompts and restores the built-ins.
func (l *Library) ResetDefaults() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modes = make(map[string]Prompt, len(defaults))
	for id, p := range defaults {
		l.modes[id] = p
	}
	return l.save()
}

// IsDefault reports whether id names a built-in mode.
func (l *Library) IsDefault(id string) bool {
	_, ok := defaults[id]
	return ok
}

// Mode pairs a prompt ID with its display name for UI lists.
type Mode struct {
	ID   string
	Name string
}

// Modes lists all prompts sorted by display name.
func (l *Library) Modes() []Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	modes := make([]Mode, 0, len(l.modes))
	for id, p := range l.modes {
		modes = append(modes, Mode{ID: id, Name: p.Name})
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i].Name < modes[j].Name })
	return modes
}

// NormalizeID lowercases an ID and replaces spaces with underscores.
func NormalizeID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), " ", "_")
}

// save writes the library atomically. Callers hold l.mu.
func (l *Library) save() error {
	data, err := json.MarshalIndent(l.modes, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing prompt library: %w", err)
	}
	return os.Rename(tmp, l.path)
}
