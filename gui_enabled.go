//go:build gui

package main

import (
	"quill/gui"
	"quill/notepad"
	"quill/recorder"
)

func runGUI(d deps) error {
	a := gui.NewApp(d.cfg, d.library, d.audioCtx, d.version)
	events := recorder.Events{
		Level:   a.AudioLevel,
		Tick:    a.RecordingTick,
		Silence: a.SilenceWarning,
	}
	rec := recorder.New(d.capture, d.cacheDir, d.format, events)
	ctrl := notepad.New(rec, d.trans, d.ref, d.cfg)
	return a.Run(ctrl)
}
