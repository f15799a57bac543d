// Package doctor runs interactive system diagnostics for the setup
// every support thread asks about: config, keys, mic, network,
// clipboard, hotkey.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quill/audio"
	"quill/clipboard"
	"quill/config"
	"quill/encoder"
	"quill/hotkey"
	"quill/recorder"
	"quill/transcriber"
)

// Run executes the diagnostic checks and returns an exit code (0=all
// pass, 1=any fail).
func Run(cfg *config.Store) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("quill doctor - interactive system diagnostics")
	fmt.Println("=============================================")

	allPass := true

	if !checkConfig(cfg) {
		allPass = false
	}
	trans, ok := checkAPIKey(cfg)
	if !ok {
		allPass = false
	}
	if allPass && !checkMicAndTranscription(cfg, trans) {
		allPass = false
	}
	if allPass && !checkClipboard() {
		allPass = false
	}
	if allPass && !checkHotkey() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(cfg *config.Store) bool {
	fmt.Println()
	fmt.Println("[1/5] Config directory")

	probe := filepath.Join(cfg.Dir(), ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		fmt.Printf("  FAIL: config dir not writable: %v\n", err)
		return false
	}
	os.Remove(probe)

	out := cfg.Get().OutputDirectory
	if err := os.MkdirAll(out, 0o755); err != nil {
		fmt.Printf("  FAIL: output directory %s: %v\n", out, err)
		return false
	}

	fmt.Printf("  PASS: %s writable, output dir %s\n", cfg.Dir(), out)
	return true
}

func checkAPIKey(cfg *config.Store) (transcriber.Transcriber, bool) {
	fmt.Println()
	fmt.Println("[2/5] API key")

	s := cfg.Get()
	trans, err := transcriber.New(s.Provider, s.APIKey, s.GroqAPIKey)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Set api_key or groq_api_key in settings.json, or export OPENAI_API_KEY / GROQ_API_KEY")
		return nil, false
	}

	fmt.Printf("  PASS: %s provider configured\n", trans.Name())
	return trans, true
}

func checkMicAndTranscription(cfg *config.Store, trans transcriber.Transcriber) bool {
	fmt.Println()
	fmt.Println("[3/5] Microphone and transcription")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Println("  FAIL: invalid choice")
			return false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	if audio.IsBluetooth(device.Name) {
		fmt.Println("  Warning: Bluetooth mic detected, transcription quality may suffer")
	}

	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: cannot open capture device: %v\n", err)
		return false
	}
	defer capture.Close()

	cacheDir, err := cfg.CacheDir()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	rec := recorder.New(capture, cacheDir, cfg.Get().AudioFormat, recorder.Events{})
	if err := rec.Start(); err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}

	fmt.Print("  Recording")
	for i := 0; i < 6; i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" done")

	audioPath, err := rec.Stop()
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	defer recorder.Discard(audioPath)

	info, _ := os.Stat(audioPath)
	fmt.Printf("  Recorded %.1f KB, transcribing...\n", float64(info.Size())/1024)

	result, err := trans.Transcribe(context.Background(), audioPath)
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = "(no speech detected)"
	}

	fmt.Printf("\n  Transcribed text: %s\n\n", text)

	// Fresh reader to clear any buffered input
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}

	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[4/5] Clipboard")

	testStr := fmt.Sprintf("quill-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[5/5] Hotkey")

	msg, err := hotkey.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)

	fmt.Println("Press Ctrl+Shift+Space (10s timeout, Enter to skip)...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}
