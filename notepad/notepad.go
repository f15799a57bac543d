// Package notepad is the controller behind the UI: it drives the
// recording, transcription, refinement, and save pipeline and owns the
// note's state.
package notepad

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quill/config"
	"quill/recorder"
	"quill/refiner"
	"quill/transcriber"
)

var (
	// ErrFileWrite reports that the note could not be written to the
	// output directory.
	ErrFileWrite = errors.New("could not write note file")
	// ErrBusy reports that a network operation is already running.
	ErrBusy = errors.New("operation already in progress")
)

// State is the note's position in the pipeline. Failed operations
// leave the state where it was.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateRecorded
	StateTranscribed
	StateProcessed
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateRecorded:
		return "recorded"
	case StateTranscribed:
		return "transcribed"
	case StateProcessed:
		return "processed"
	case StateSaved:
		return "saved"
	}
	return "unknown"
}

type Controller struct {
	rec   *recorder.Recorder
	trans transcriber.Transcriber
	ref   refiner.Refiner
	cfg   *config.Store

	mu         sync.Mutex
	state      State
	busy       bool
	audioPath  string
	transcript string
	processed  string
	promptID   string
}

func New(rec *recorder.Recorder, trans transcriber.Transcriber, ref refiner.Refiner, cfg *config.Store) *Controller {
	return &Controller{rec: rec, trans: trans, ref: ref, cfg: cfg}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

func (c *Controller) Processed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// SetTranscript replaces the transcript with the user's edits, so
// refinement runs on the corrected text.
func (c *Controller) SetTranscript(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = text
}

// SetProcessed replaces the processed text with the user's edits.
func (c *Controller) SetProcessed(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = text
}

func (c *Controller) Elapsed() time.Duration { return c.rec.Elapsed() }

// beginBusy marks a network call in flight. Only one runs at a time.
func (c *Controller) beginBusy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Controller) endBusy() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// StartRecording begins a fresh recording, discarding any previous
// note content.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state == StateRecording || c.state == StatePaused {
		c.mu.Unlock()
		return fmt.Errorf("recording already in progress")
	}
	oldAudio := c.audioPath
	c.mu.Unlock()

	if err := c.rec.Start(); err != nil {
		return err
	}
	recorder.Discard(oldAudio)

	c.mu.Lock()
	c.state = StateRecording
	c.audioPath = ""
	c.transcript = ""
	c.processed = ""
	c.mu.Unlock()
	return nil
}

func (c *Controller) PauseRecording() bool {
	if !c.rec.Pause() {
		return false
	}
	c.mu.Lock()
	c.state = StatePaused
	c.mu.Unlock()
	return true
}

func (c *Controller) ResumeRecording() bool {
	if !c.rec.Resume() {
		return false
	}
	c.mu.Lock()
	c.state = StateRecording
	c.mu.Unlock()
	return true
}

// StopRecording finalizes the audio file. A recording with no usable
// audio returns recorder.ErrNoAudio and the controller goes back to
// idle.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return fmt.Errorf("not recording")
	}
	c.mu.Unlock()

	path, err := c.rec.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateIdle
		return err
	}
	c.audioPath = path
	c.state = StateRecorded
	return nil
}

// Transcribe uploads the recorded audio. On failure the transcript and
// state are left unchanged.
func (c *Controller) Transcribe(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecorded {
		c.mu.Unlock()
		return fmt.Errorf("nothing recorded to transcribe")
	}
	audioPath := c.audioPath
	c.mu.Unlock()

	if err := c.beginBusy(); err != nil {
		return err
	}
	defer c.endBusy()

	result, err := c.trans.Transcribe(ctx, audioPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = result.Text
	c.state = StateTranscribed
	return nil
}

// Process refines the transcript with the selected prompt. The chosen
// mode is persisted as last_mode on success. On failure the processed
// text and state are left unchanged.
func (c *Controller) Process(ctx context.Context, promptID string) error {
	c.mu.Lock()
	if c.transcript == "" {
		c.mu.Unlock()
		return fmt.Errorf("nothing transcribed to process")
	}
	transcript := c.transcript
	c.mu.Unlock()

	if err := c.beginBusy(); err != nil {
		return err
	}
	defer c.endBusy()

	processed, err := c.ref.Process(ctx, transcript, promptID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.processed = processed
	c.promptID = promptID
	c.state = StateProcessed
	c.mu.Unlock()

	if c.cfg != nil {
		c.cfg.Update(func(s *config.Settings) { s.LastMode = promptID })
	}
	return nil
}

// SuggestTitle asks the refinement endpoint for a filename based on
// the current note text.
func (c *Controller) SuggestTitle(ctx context.Context) (string, error) {
	text := c.noteText()
	if text == "" {
		return "", fmt.Errorf("nothing to suggest a title for")
	}

	if err := c.beginBusy(); err != nil {
		return "", err
	}
	defer c.endBusy()

	return c.ref.SuggestTitle(ctx, text)
}

// noteText returns the processed text, falling back to the raw
// transcript when no refinement has run.
func (c *Controller) noteText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processed != "" {
		return c.processed
	}
	return c.transcript
}

// SaveMarkdown writes the note into dir under title, enforcing a .md
// extension. An empty title becomes note-<timestamp>. The cached audio
// file is removed after a successful save. Returns the written path.
func (c *Controller) SaveMarkdown(dir, title string) (string, error) {
	text := c.noteText()
	if text == "" {
		return "", fmt.Errorf("nothing to save")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "note-" + time.Now().Format("20060102-150405")
	}
	if !strings.HasSuffix(strings.ToLower(title), ".md") {
		title += ".md"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	path := filepath.Join(dir, title)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileWrite, err)
	}

	c.mu.Lock()
	audioPath := c.audioPath
	c.audioPath = ""
	c.state = StateSaved
	c.mu.Unlock()

	recorder.Discard(audioPath)
	return path, nil
}

// Reset discards the note and any cached audio, returning to idle. An
// in-progress recording is aborted.
func (c *Controller) Reset() {
	c.mu.Lock()
	recording := c.state == StateRecording || c.state == StatePaused
	audioPath := c.audioPath
	c.mu.Unlock()

	if recording {
		c.rec.Clear()
	}
	recorder.Discard(audioPath)

	c.mu.Lock()
	c.state = StateIdle
	c.audioPath = ""
	c.transcript = ""
	c.processed = ""
	c.promptID = ""
	c.mu.Unlock()
}
