package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"quill/audio"
	"quill/config"
	"quill/doctor"
	"quill/encoder"
	"quill/log"
	"quill/prompt"
	"quill/refiner"
	"quill/shutdown"
	"quill/transcriber"
)

var version = "dev"

const groqChatURL = "https://api.groq.com/openai/v1"
const groqChatModel = "llama-3.3-70b-versatile"

// deps is everything a UI mode needs to build its recorder and
// controller.
type deps struct {
	cfg       *config.Store
	library   *prompt.Library
	trans     transcriber.Transcriber
	ref       refiner.Refiner
	audioCtx  audio.Context
	capture   audio.CaptureDevice
	cacheDir  string
	format    string
	mode      string
	longPress time.Duration
	version   string
}

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		log.Close()
		os.Exit(0)
	})
}

func main() {
	godotenv.Load()

	dictateFlag := flag.Bool("dictate", false, "Run the hands-free terminal dictation mode instead of the notepad window")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively and remember the choice")
	deviceFlag := flag.String("device", "", "Use named microphone device (overrides saved setting)")
	formatFlag := flag.String("format", "", "Audio format: flac or wav (overrides saved setting)")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	outputFlag := flag.String("output", "", "Output directory for saved notes (overrides saved setting)")
	modeFlag := flag.String("mode", "", "Refinement mode for -dictate (default: last used)")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Hold threshold separating tap from push-to-talk")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("quill %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	configDir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load(configDir)
	library := prompt.Load(configDir)

	if *outputFlag != "" {
		if err := cfg.Update(func(s *config.Settings) { s.OutputDirectory = *outputFlag }); err != nil {
			log.Warnf("saving output directory: %v", err)
		}
	}

	if *doctorFlag {
		log.Close()
		os.Exit(doctor.Run(cfg))
	}

	settings := cfg.Get()

	format := settings.AudioFormat
	if *formatFlag != "" {
		format = *formatFlag
	}
	switch format {
	case "flac", "wav":
	default:
		fmt.Printf("Error: unknown format %q (use flac or wav)\n", format)
		os.Exit(1)
	}

	trans, err := transcriber.New(settings.Provider, settings.APIKey, settings.GroqAPIKey)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	lang := settings.Language
	if *langFlag != "" {
		lang = *langFlag
	}
	if lang != "" {
		trans.SetLanguage(lang)
	}
	if warmer, ok := trans.(interface{ Warm() }); ok {
		warmer.Warm()
	}

	var ref refiner.Refiner
	if settings.APIKey != "" {
		ref = refiner.New(settings.APIKey, library)
	} else {
		// Groq serves an OpenAI-compatible chat endpoint.
		c := refiner.NewWithBaseURL(settings.GroqAPIKey, groqChatURL, library)
		c.SetModel(groqChatModel)
		ref = c
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	deviceName := settings.DefaultDevice
	if *deviceFlag != "" {
		deviceName = *deviceFlag
	}
	if *setupFlag {
		dev, err := selectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		} else if dev != nil {
			deviceName = dev.Name
			if err := cfg.Update(func(s *config.Settings) { s.DefaultDevice = dev.Name }); err != nil {
				log.Warnf("saving device choice: %v", err)
			}
		}
	}

	selectedDevice := audio.FindDevice(audioCtx, deviceName)
	if deviceName != "" && selectedDevice == nil {
		log.Warnf("device not found, using system default: %s", deviceName)
	}
	if selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name) {
		log.Warn("bluetooth_device_selected: " + selectedDevice.Name)
	}

	capture, err := audioCtx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()

	cacheDir, err := cfg.CacheDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	mode := settings.LastMode
	if *modeFlag != "" {
		mode = prompt.NormalizeID(*modeFlag)
	}
	if _, err := library.Get(mode); err != nil {
		log.Warnf("unknown refinement mode %q, using basic_cleanup", mode)
		mode = "basic_cleanup"
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	d := deps{
		cfg:       cfg,
		library:   library,
		trans:     trans,
		ref:       ref,
		audioCtx:  audioCtx,
		capture:   capture,
		cacheDir:  cacheDir,
		format:    format,
		mode:      mode,
		longPress: *longPressFlag,
		version:   version,
	}

	log.Infof("session_start provider=%s format=%s mode=%s", trans.Name(), format, mode)

	if *dictateFlag {
		err = runDictate(d)
	} else {
		err = runGUI(d)
	}
	if err != nil {
		log.Errorf("UI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	gracefulShutdown()
}
