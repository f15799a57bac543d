package notepad

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quill/audio"
	"quill/config"
	"quill/encoder"
	"quill/prompt"
	"quill/recorder"
	"quill/refiner"
	"quill/transcriber"
)

// loudPCM is one second of audible square wave as little-endian PCM16.
func loudPCM() []byte {
	data := make([]byte, encoder.SampleRate*2)
	for i := 0; i < len(data); i += 2 {
		sample := int16(8000)
		if (i/2)%40 < 20 {
			sample = -8000
		}
		data[i] = byte(sample)
		data[i+1] = byte(sample >> 8)
	}
	return data
}

type fixture struct {
	ctrl *Controller
	cfg  *config.Store
	lib  *prompt.Library
	ref  *refiner.Fake
}

func newFixture(t *testing.T, trans transcriber.Transcriber) *fixture {
	t.Helper()
	ctx := audio.NewFakeContext(loudPCM(), false)
	capture, err := ctx.NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	rec := recorder.New(capture, t.TempDir(), "wav", recorder.Events{})

	cfg := config.Load(t.TempDir())
	lib := prompt.Load(t.TempDir())
	ref := &refiner.Fake{Library: lib, Text: "refined text", Title: "2026-08-27-refined-note"}

	return &fixture{
		ctrl: New(rec, trans, ref, cfg),
		cfg:  cfg,
		lib:  lib,
		ref:  ref,
	}
}

func (f *fixture) record(t *testing.T) {
	t.Helper()
	if err := f.ctrl.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.ctrl.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
}

func TestFullPipeline(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello world", nil))

	if f.ctrl.State() != StateIdle {
		t.Fatalf("initial state = %v", f.ctrl.State())
	}
	f.record(t)
	if f.ctrl.State() != StateRecorded {
		t.Fatalf("state after stop = %v", f.ctrl.State())
	}

	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if f.ctrl.State() != StateTranscribed || f.ctrl.Transcript() != "hello world" {
		t.Fatalf("after transcribe: state=%v transcript=%q", f.ctrl.State(), f.ctrl.Transcript())
	}

	if err := f.ctrl.Process(context.Background(), "basic_cleanup"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if f.ctrl.State() != StateProcessed || f.ctrl.Processed() != "refined text" {
		t.Fatalf("after process: state=%v processed=%q", f.ctrl.State(), f.ctrl.Processed())
	}
	if f.cfg.Get().LastMode != "basic_cleanup" {
		t.Errorf("last_mode not persisted: %q", f.cfg.Get().LastMode)
	}

	out := t.TempDir()
	path, err := f.ctrl.SaveMarkdown(out, "my-note")
	if err != nil {
		t.Fatalf("SaveMarkdown: %v", err)
	}
	if filepath.Base(path) != "my-note.md" {
		t.Errorf("saved as %q, want my-note.md", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "refined text" {
		t.Errorf("saved content = %q, %v", data, err)
	}
	if f.ctrl.State() != StateSaved {
		t.Errorf("state after save = %v", f.ctrl.State())
	}
}

func TestSaveDefaultTitle(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	path, err := f.ctrl.SaveMarkdown(t.TempDir(), "")
	if err != nil {
		t.Fatalf("SaveMarkdown: %v", err)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "note-") || !strings.HasSuffix(name, ".md") {
		t.Errorf("default title = %q, want note-<timestamp>.md", name)
	}
}

func TestSaveFallsBackToTranscript(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("raw transcript only", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	path, err := f.ctrl.SaveMarkdown(t.TempDir(), "raw")
	if err != nil {
		t.Fatalf("SaveMarkdown: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "raw transcript only" {
		t.Errorf("saved content = %q", data)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("x", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	edited := "# Title\n\nline one\nline two\n"
	f.ctrl.SetProcessed(edited)

	path, err := f.ctrl.SaveMarkdown(t.TempDir(), "edited.md")
	if err != nil {
		t.Fatalf("SaveMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != edited {
		t.Errorf("content changed on save: %q", data)
	}
}

func TestSetTranscriptEdits(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("helo wrold", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.ctrl.SetTranscript("hello world")
	if f.ctrl.Transcript() != "hello world" {
		t.Errorf("transcript = %q", f.ctrl.Transcript())
	}

	path, err := f.ctrl.SaveMarkdown(t.TempDir(), "fixed")
	if err != nil {
		t.Fatalf("SaveMarkdown: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello world" {
		t.Errorf("saved content = %q", data)
	}
}

func TestTranscribeFailureKeepsState(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("", transcriber.ErrNetwork))
	f.record(t)

	err := f.ctrl.Transcribe(context.Background())
	if !errors.Is(err, transcriber.ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if f.ctrl.State() != StateRecorded {
		t.Errorf("state after failed transcribe = %v, want StateRecorded", f.ctrl.State())
	}
	if f.ctrl.Transcript() != "" {
		t.Errorf("transcript set despite failure: %q", f.ctrl.Transcript())
	}
	if f.ctrl.Busy() {
		t.Error("busy flag stuck after failure")
	}
}

func TestProcessUnknownPrompt(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := f.ctrl.Process(context.Background(), "no_such_mode")
	if !errors.Is(err, prompt.ErrNotFound) {
		t.Fatalf("error = %v, want prompt.ErrNotFound", err)
	}
	if f.ctrl.State() != StateTranscribed {
		t.Errorf("state after failed process = %v, want StateTranscribed", f.ctrl.State())
	}
	if f.ctrl.Processed() != "" {
		t.Errorf("processed set despite failure: %q", f.ctrl.Processed())
	}
}

func TestProcessFailureKeepsProcessed(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Process(context.Background(), "basic_cleanup"); err != nil {
		t.Fatal(err)
	}

	f.ref.Err = refiner.ErrAPI
	err := f.ctrl.Process(context.Background(), "bullet_summary")
	if !errors.Is(err, refiner.ErrAPI) {
		t.Fatalf("error = %v, want ErrAPI", err)
	}
	if f.ctrl.Processed() != "refined text" {
		t.Errorf("previous processed text lost: %q", f.ctrl.Processed())
	}
	if f.ctrl.State() != StateProcessed {
		t.Errorf("state = %v, want StateProcessed", f.ctrl.State())
	}
}

func TestSaveFileWriteError(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A regular file where a directory is needed.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := f.ctrl.SaveMarkdown(filepath.Join(blocker, "sub"), "note")
	if !errors.Is(err, ErrFileWrite) {
		t.Fatalf("error = %v, want ErrFileWrite", err)
	}
	if f.ctrl.State() != StateTranscribed {
		t.Errorf("state after failed save = %v, want StateTranscribed", f.ctrl.State())
	}
}

func TestShortRecordingReturnsToIdle(t *testing.T) {
	ctx := audio.NewFakeContext(make([]byte, 200), false) // well under 100ms
	capture, err := ctx.NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	rec := recorder.New(capture, t.TempDir(), "wav", recorder.Events{})
	c := New(rec, transcriber.NewFake("x", nil), &refiner.Fake{}, nil)

	if err := c.StartRecording(); err != nil {
		t.Fatal(err)
	}
	err = c.StopRecording()
	if !errors.Is(err, recorder.ErrNoAudio) {
		t.Fatalf("error = %v, want ErrNoAudio", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle", c.State())
	}
}

func TestBusyGuard(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	f.record(t)

	f.ctrl.mu.Lock()
	f.ctrl.busy = true
	f.ctrl.mu.Unlock()

	if err := f.ctrl.Transcribe(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Transcribe while busy = %v, want ErrBusy", err)
	}
	if err := f.ctrl.StartRecording(); !errors.Is(err, ErrBusy) {
		t.Errorf("StartRecording while busy = %v, want ErrBusy", err)
	}
}

func TestTranscribeRequiresRecording(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	if err := f.ctrl.Transcribe(context.Background()); err == nil {
		t.Error("expected error with nothing recorded")
	}
}

func TestSuggestTitle(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	title, err := f.ctrl.SuggestTitle(context.Background())
	if err != nil {
		t.Fatalf("SuggestTitle: %v", err)
	}
	if title != "2026-08-27-refined-note" {
		t.Errorf("title = %q", title)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, transcriber.NewFake("hello", nil))
	f.record(t)
	if err := f.ctrl.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.ctrl.Reset()
	if f.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle", f.ctrl.State())
	}
	if f.ctrl.Transcript() != "" || f.ctrl.Processed() != "" {
		t.Error("note content survived reset")
	}
}

func TestStateString(t *testing.T) {
	if StateRecording.String() != "recording" || StateSaved.String() != "saved" {
		t.Error("State.String mismatch")
	}
	if State(99).String() != "unknown" {
		t.Error("unknown state string")
	}
}
