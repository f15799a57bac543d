package transcriber

import (
	"context"
	"time"
)

// FakeTranscriber returns canned text or a canned error. Used by
// controller tests and the -dictate test mode.
type FakeTranscriber struct {
	text string
	err  error
	lang string
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string           { return "fake" }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string     { return f.lang }

func (f *FakeTranscriber) Transcribe(_ context.Context, _ string) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Result{
		Text:     f.text,
		NoSpeech: f.text == "",
		Metrics:  &NetworkMetrics{TTFB: 10 * time.Millisecond},
	}, nil
}
