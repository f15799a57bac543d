package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"quill/clipboard"
	"quill/hotkey"
	"quill/log"
	"quill/notepad"
	"quill/recorder"
)

// keyToggleChan carries record toggles typed into the TUI.
var keyToggleChan = make(chan struct{}, 1)

// runDictate is the hands-free mode: one hotkey press records, the
// stop runs the whole transcribe-process-save pipeline and copies the
// note to the clipboard.
func runDictate(d deps) error {
	events := recorder.Events{
		Level:   func(rms float64) { dictateSend(AudioLevelMsg{Level: rms}) },
		Tick:    func(elapsed time.Duration) { dictateSend(RecordingTickMsg{Elapsed: elapsed}) },
		Silence: func(warned bool) { dictateSend(NoVoiceWarningMsg{Warned: warned}) },
	}
	rec := recorder.New(d.capture, d.cacheDir, d.format, events)
	ctrl := notepad.New(rec, d.trans, d.ref, d.cfg)

	modeLine := fmt.Sprintf("[%s | %s | %s]", d.format, d.trans.Name(), d.mode)
	program := tea.NewProgram(newDictateModel(modeLine), tea.WithAltScreen())
	dictateMu.Lock()
	dictateProgram = program
	dictateMu.Unlock()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey register error: %v", err)
	} else {
		defer hk.Unregister()
	}
	hy := hotkey.NewHybrid(hk, d.longPress)

	go func() {
		recording := false

		start := func() {
			if err := ctrl.StartRecording(); err != nil {
				dictateSend(StatusMsg{Text: "Error: " + err.Error()})
				log.Errorf("recording start: %v", err)
				return
			}
			log.Info("dictate_record_start")
			recording = true
			dictateSend(RecordingStartMsg{})
		}

		stop := func() {
			recording = false
			finishDictation(ctrl, d)
		}

		for {
			select {
			case <-hy.Start():
				if !recording {
					start()
				}
			case <-hy.StopChan():
				if recording {
					stop()
				}
			case <-keyToggleChan:
				if recording {
					stop()
				} else {
					start()
				}
			}
		}
	}()

	_, err := program.Run()
	return err
}

func finishDictation(ctrl *notepad.Controller, d deps) {
	if err := ctrl.StopRecording(); err != nil {
		if errors.Is(err, recorder.ErrNoAudio) {
			dictateSend(NoteMsg{NoSpeech: true})
		} else {
			dictateSend(StatusMsg{Text: "Error: " + err.Error()})
			log.Errorf("recording stop: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dictateSend(StatusMsg{Text: "Transcribing..."})
	if err := ctrl.Transcribe(ctx); err != nil {
		dictateSend(StatusMsg{Text: "Error: " + err.Error()})
		log.Errorf("transcription: %v", err)
		return
	}
	if ctrl.Transcript() == "" {
		log.Info("no_speech")
		ctrl.Reset()
		dictateSend(NoteMsg{NoSpeech: true})
		return
	}

	dictateSend(StatusMsg{Text: "Processing with " + d.mode + "..."})
	if err := ctrl.Process(ctx, d.mode); err != nil {
		dictateSend(StatusMsg{Text: "Error: " + err.Error()})
		log.Errorf("refinement: %v", err)
		return
	}

	text := ctrl.Processed()
	if err := clipboard.Copy(text); err != nil {
		log.Warnf("clipboard copy: %v", err)
	}

	path, err := ctrl.SaveMarkdown(d.cfg.Get().OutputDirectory, "")
	if err != nil {
		dictateSend(StatusMsg{Text: "Error: " + err.Error()})
		log.Errorf("note save: %v", err)
		return
	}
	log.NoteSaved(path, d.mode, len(text))

	dictateSend(NoteMsg{Text: text, Path: path})
}
