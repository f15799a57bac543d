//go:build gui

package gui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"quill/audio"
	"quill/clipboard"
	"quill/config"
	"quill/log"
	"quill/notepad"
	"quill/prompt"
	"quill/recorder"
)

const requestTimeout = 2 * time.Minute

// App is the notepad window. Recorder callbacks arrive on capture
// goroutines; every widget mutation goes through fyne.Do.
type App struct {
	fyneApp fyne.App
	window  fyne.Window

	ctrl     *notepad.Controller
	cfg      *config.Store
	library  *prompt.Library
	audioCtx audio.Context
	version  string

	recordBtn  *widget.Button
	pauseBtn   *widget.Button
	elapsed    *widget.Label
	level      *widget.ProgressBar
	status     *widget.Label
	transcript *widget.Entry
	noteText   *widget.Entry
	modeSelect *widget.Select
	titleEntry *widget.Entry

	modeIDs []string
}

func NewApp(cfg *config.Store, library *prompt.Library, audioCtx audio.Context, version string) *App {
	return &App{
		cfg:      cfg,
		library:  library,
		audioCtx: audioCtx,
		version:  version,
	}
}

// Recorder event sink. Safe to call from any goroutine.

func (a *App) AudioLevel(rms float64) {
	fyne.Do(func() {
		if a.level != nil {
			// Speech RMS rarely exceeds ~0.3, stretch for visibility.
			v := rms * 3
			if v > 1 {
				v = 1
			}
			a.level.SetValue(v)
		}
	})
}

func (a *App) RecordingTick(elapsed time.Duration) {
	fyne.Do(func() {
		if a.elapsed != nil {
			a.elapsed.SetText(fmtDuration(elapsed))
		}
	})
}

func (a *App) SilenceWarning(warned bool) {
	fyne.Do(func() {
		if a.status == nil {
			return
		}
		if warned {
			a.status.SetText("No voice detected, is the right microphone selected?")
		} else {
			a.status.SetText("Recording...")
		}
	})
}

func fmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Run builds the window and blocks in the fyne event loop.
func (a *App) Run(ctrl *notepad.Controller) error {
	a.ctrl = ctrl
	a.fyneApp = app.NewWithID("io.quill.notepad")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("quill",
			fyne.NewMenuItem("Show", func() {
				fyne.Do(func() { a.window.Show() })
			}),
			fyne.NewMenuItem("Quit", func() {
				a.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(menu)
	}

	a.window = a.fyneApp.NewWindow("quill " + a.version)
	a.window.Resize(fyne.NewSize(720, 560))
	a.window.SetCloseIntercept(func() {
		a.window.Hide()
	})

	tabs := container.NewAppTabs(
		container.NewTabItem("Notepad", a.buildNotepadTab()),
		container.NewTabItem("Prompts", a.buildPromptsTab()),
		container.NewTabItem("Settings", a.buildSettingsTab()),
	)
	a.window.SetContent(tabs)

	a.window.Show()
	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

func (a *App) setStatus(text string) {
	a.status.SetText(text)
}

// showErr surfaces a pipeline failure without changing note state.
func (a *App) showErr(err error) {
	fyne.Do(func() {
		a.setStatus("Error: " + err.Error())
		dialog.ShowError(err, a.window)
	})
	log.Errorf("%v", err)
}

func (a *App) buildNotepadTab() fyne.CanvasObject {
	a.elapsed = widget.NewLabel("00:00")
	a.level = widget.NewProgressBar()
	a.status = widget.NewLabel("Ready")

	a.transcript = widget.NewMultiLineEntry()
	a.transcript.SetPlaceHolder("Transcript appears here after recording")
	a.transcript.Wrapping = fyne.TextWrapWord
	a.transcript.OnChanged = func(text string) {
		a.ctrl.SetTranscript(text)
	}

	a.noteText = widget.NewMultiLineEntry()
	a.noteText.SetPlaceHolder("Processed note, editable before saving")
	a.noteText.Wrapping = fyne.TextWrapWord
	a.noteText.OnChanged = func(text string) {
		a.ctrl.SetProcessed(text)
	}

	a.refreshModes()

	a.pauseBtn = widget.NewButton("Pause", a.onPause)
	a.pauseBtn.Disable()
	a.recordBtn = widget.NewButton("Record", a.onRecord)

	transcribeBtn := widget.NewButton("Transcribe", a.onTranscribe)
	processBtn := widget.NewButton("Process", a.onProcess)

	a.titleEntry = widget.NewEntry()
	a.titleEntry.SetPlaceHolder("Filename (.md added automatically)")
	suggestBtn := widget.NewButton("Suggest", a.onSuggestTitle)
	saveBtn := widget.NewButton("Save", a.onSave)
	copyBtn := widget.NewButton("Copy", a.onCopy)
	clearBtn := widget.NewButton("Clear", a.onClear)

	recordRow := container.NewHBox(a.recordBtn, a.pauseBtn, a.elapsed, clearBtn)
	processRow := container.NewBorder(nil, nil, transcribeBtn, processBtn, a.modeSelect)
	saveRow := container.NewBorder(nil, nil, suggestBtn, container.NewHBox(saveBtn, copyBtn), a.titleEntry)

	top := container.NewVBox(recordRow, a.level, processRow)
	bottom := container.NewVBox(saveRow, a.status)
	split := container.NewVSplit(a.transcript, a.noteText)

	return container.NewBorder(top, bottom, nil, nil, split)
}

func (a *App) refreshModes() {
	modes := a.library.Modes()
	names := make([]string, len(modes))
	a.modeIDs = make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Name
		a.modeIDs[i] = m.ID
	}

	if a.modeSelect == nil {
		a.modeSelect = widget.NewSelect(names, nil)
	} else {
		a.modeSelect.Options = names
		a.modeSelect.Refresh()
	}

	last := a.cfg.Get().LastMode
	for i, id := range a.modeIDs {
		if id == last {
			a.modeSelect.SetSelectedIndex(i)
			return
		}
	}
	if len(names) > 0 {
		a.modeSelect.SetSelectedIndex(0)
	}
}

func (a *App) selectedMode() string {
	i := a.modeSelect.SelectedIndex()
	if i < 0 || i >= len(a.modeIDs) {
		return "basic_cleanup"
	}
	return a.modeIDs[i]
}

func (a *App) onRecord() {
	switch a.ctrl.State() {
	case notepad.StateRecording, notepad.StatePaused:
		if err := a.ctrl.StopRecording(); err != nil {
			if errors.Is(err, recorder.ErrNoAudio) {
				a.setStatus("Recording too short, discarded")
			} else {
				a.showErr(err)
			}
		} else {
			a.setStatus("Recorded " + fmtDuration(a.ctrl.Elapsed()))
		}
		a.recordBtn.SetText("Record")
		a.pauseBtn.SetText("Pause")
		a.pauseBtn.Disable()
		a.level.SetValue(0)
	default:
		if err := a.ctrl.StartRecording(); err != nil {
			a.showErr(err)
			return
		}
		log.Info("recording_start")
		a.transcript.SetText("")
		a.noteText.SetText("")
		a.elapsed.SetText("00:00")
		a.setStatus("Recording...")
		a.recordBtn.SetText("Stop")
		a.pauseBtn.Enable()
	}
}

func (a *App) onPause() {
	if a.ctrl.State() == notepad.StatePaused {
		if a.ctrl.ResumeRecording() {
			a.pauseBtn.SetText("Pause")
			a.setStatus("Recording...")
		}
		return
	}
	if a.ctrl.PauseRecording() {
		a.pauseBtn.SetText("Resume")
		a.setStatus("Paused")
	}
}

func (a *App) onTranscribe() {
	a.setStatus("Transcribing...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := a.ctrl.Transcribe(ctx); err != nil {
			a.showErr(err)
			return
		}
		text := a.ctrl.Transcript()
		fyne.Do(func() {
			a.transcript.SetText(text)
			if text == "" {
				a.setStatus("No speech detected")
			} else {
				a.setStatus("Transcribed")
			}
		})
	}()
}

func (a *App) onProcess() {
	mode := a.selectedMode()
	a.setStatus("Processing...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		start := time.Now()
		if err := a.ctrl.Process(ctx, mode); err != nil {
			a.showErr(err)
			return
		}
		text := a.ctrl.Processed()
		log.Refinement(mode, len(a.ctrl.Transcript()), len(text), float64(time.Since(start).Milliseconds()))
		fyne.Do(func() {
			a.noteText.SetText(text)
			a.setStatus("Processed with " + mode)
		})
	}()
}

func (a *App) onSuggestTitle() {
	a.setStatus("Suggesting title...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		title, err := a.ctrl.SuggestTitle(ctx)
		if err != nil {
			a.showErr(err)
			return
		}
		fyne.Do(func() {
			a.titleEntry.SetText(title)
			a.setStatus("Ready")
		})
	}()
}

func (a *App) onSave() {
	dir := a.cfg.Get().OutputDirectory
	path, err := a.ctrl.SaveMarkdown(dir, a.titleEntry.Text)
	if err != nil {
		a.showErr(err)
		return
	}
	log.NoteSaved(path, a.selectedMode(), len(a.ctrl.Processed()))
	a.setStatus("Saved " + path)
}

func (a *App) onCopy() {
	text := a.noteText.Text
	if text == "" {
		text = a.transcript.Text
	}
	if text == "" {
		a.setStatus("Nothing to copy")
		return
	}
	if err := clipboard.Copy(text); err != nil {
		a.showErr(err)
		return
	}
	a.setStatus("Copied to clipboard")
}

func (a *App) onClear() {
	a.ctrl.Reset()
	a.transcript.SetText("")
	a.noteText.SetText("")
	a.titleEntry.SetText("")
	a.elapsed.SetText("00:00")
	a.level.SetValue(0)
	a.recordBtn.SetText("Record")
	a.pauseBtn.SetText("Pause")
	a.pauseBtn.Disable()
	a.setStatus("Ready")
}

func (a *App) buildPromptsTab() fyne.CanvasObject {
	idEntry := widget.NewEntry()
	idEntry.SetPlaceHolder("prompt id, e.g. release_notes")
	nameEntry := widget.NewEntry()
	nameEntry.SetPlaceHolder("Display name")
	textEntry := widget.NewMultiLineEntry()
	textEntry.SetPlaceHolder("System prompt text")
	textEntry.Wrapping = fyne.TextWrapWord
	jsonCheck := widget.NewCheck("Structured JSON response", nil)

	var list *widget.List
	modes := a.library.Modes()

	reload := func() {
		modes = a.library.Modes()
		list.Refresh()
		a.refreshModes()
	}

	list = widget.NewList(
		func() int { return len(modes) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			label := modes[i].Name
			if a.library.IsDefault(modes[i].ID) {
				label += " (built-in)"
			}
			o.(*widget.Label).SetText(label)
		},
	)
	list.OnSelected = func(i widget.ListItemID) {
		p, err := a.library.Get(modes[i].ID)
		if err != nil {
			return
		}
		idEntry.SetText(modes[i].ID)
		nameEntry.SetText(p.Name)
		textEntry.SetText(p.Prompt)
		jsonCheck.SetChecked(p.RequiresJSON)
	}

	saveBtn := widget.NewButton("Save prompt", func() {
		if _, err := a.library.Add(idEntry.Text, nameEntry.Text, textEntry.Text, jsonCheck.Checked); err != nil {
			a.showErr(err)
			return
		}
		reload()
	})
	deleteBtn := widget.NewButton("Delete", func() {
		if err := a.library.Delete(prompt.NormalizeID(idEntry.Text)); err != nil {
			a.showErr(err)
			return
		}
		idEntry.SetText("")
		nameEntry.SetText("")
		textEntry.SetText("")
		jsonCheck.SetChecked(false)
		reload()
	})
	resetBtn := widget.NewButton("Reset to defaults", func() {
		dialog.ShowConfirm("Reset prompts", "Remove all custom prompts?", func(ok bool) {
			if !ok {
				return
			}
			if err := a.library.ResetDefaults(); err != nil {
				a.showErr(err)
				return
			}
			reload()
		}, a.window)
	})

	form := container.NewVBox(idEntry, nameEntry, jsonCheck, container.NewHBox(saveBtn, deleteBtn, resetBtn))
	editor := container.NewBorder(form, nil, nil, nil, textEntry)
	return container.NewHSplit(list, editor)
}

func (a *App) buildSettingsTab() fyne.CanvasObject {
	s := a.cfg.Get()

	apiKey := widget.NewPasswordEntry()
	apiKey.SetText(s.APIKey)
	groqKey := widget.NewPasswordEntry()
	groqKey.SetText(s.GroqAPIKey)

	provider := widget.NewSelect([]string{"auto", "openai", "groq"}, nil)
	if s.Provider == "" {
		provider.SetSelected("auto")
	} else {
		provider.SetSelected(s.Provider)
	}

	// Labels may carry a BT annotation, rawNames holds what gets saved.
	deviceNames := []string{"system default"}
	rawNames := []string{""}
	if devices, err := a.audioCtx.Devices(); err == nil {
		for _, d := range devices {
			label := d.Name
			if audio.IsBluetooth(d.Name) {
				label += " (Bluetooth, reduced quality)"
			}
			deviceNames = append(deviceNames, label)
			rawNames = append(rawNames, d.Name)
		}
	}
	device := widget.NewSelect(deviceNames, nil)
	device.SetSelectedIndex(0)
	for i, name := range rawNames {
		if name != "" && name == s.DefaultDevice {
			device.SetSelectedIndex(i)
			break
		}
	}

	outputDir := widget.NewEntry()
	outputDir.SetText(s.OutputDirectory)

	language := widget.NewEntry()
	language.SetPlaceHolder("auto-detect")
	language.SetText(s.Language)

	format := widget.NewSelect([]string{"flac", "wav"}, nil)
	format.SetSelected(s.AudioFormat)

	saveBtn := widget.NewButton("Save settings", func() {
		err := a.cfg.Update(func(c *config.Settings) {
			c.APIKey = apiKey.Text
			c.GroqAPIKey = groqKey.Text
			if provider.Selected == "auto" {
				c.Provider = ""
			} else {
				c.Provider = provider.Selected
			}
			if i := device.SelectedIndex(); i >= 0 && i < len(rawNames) {
				c.DefaultDevice = rawNames[i]
			}
			c.OutputDirectory = outputDir.Text
			c.Language = language.Text
			c.AudioFormat = format.Selected
		})
		if err != nil {
			a.showErr(err)
			return
		}
		a.setStatus("Settings saved, restart to apply device/format changes")
	})

	form := widget.NewForm(
		widget.NewFormItem("OpenAI API key", apiKey),
		widget.NewFormItem("Groq API key", groqKey),
		widget.NewFormItem("Provider", provider),
		widget.NewFormItem("Microphone", device),
		widget.NewFormItem("Output directory", outputDir),
		widget.NewFormItem("Language", language),
		widget.NewFormItem("Audio format", format),
	)
	return container.NewVBox(form, saveBtn)
}
