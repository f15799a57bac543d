// Package recorder turns a capture device into audio files. It owns the
// recording lifecycle (start, pause, resume, stop) and streams captured
// PCM through an encoder on a background goroutine so the capture
// callback never blocks on compression.
package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quill/audio"
	"quill/encoder"
)

var (
	// ErrDevice reports that the selected input device could not be
	// opened or started.
	ErrDevice = errors.New("audio device unavailable")
	// ErrNoAudio reports that a recording stopped before any usable
	// audio was captured.
	ErrNoAudio = errors.New("no audio captured")
)

const tickInterval = 100 * time.Millisecond

// minFrames rejects accidental taps shorter than 100ms.
const minFrames = encoder.SampleRate / 10

// Events carries optional UI callbacks. Any field may be nil. Callbacks
// run on recorder goroutines; UI layers marshal onto their own thread.
type Events struct {
	Level   func(rms float64)            // per-callback RMS, 0..1
	Tick    func(elapsed time.Duration)  // every 100ms while recording
	Silence func(warned bool)            // no-voice warning raised/cleared
}

type state int

const (
	stateIdle state = iota
	stateRecording
	statePaused
)

type Recorder struct {
	capture  audio.CaptureDevice
	cacheDir string
	format   string
	events   Events

	mu          sync.Mutex
	state       state
	enc         encoder.Encoder
	sampleBuf   []int16
	totalFrames uint64
	hadSpeech   bool

	blockChan  chan []int16
	encodeDone chan struct{}
	tickStop   chan struct{}
}

func New(capture audio.CaptureDevice, cacheDir, format string, events Events) *Recorder {
	return &Recorder{
		capture:  capture,
		cacheDir: cacheDir,
		format:   format,
		events:   events,
	}
}

// Start begins a new recording. Fails with ErrDevice when the capture
// device cannot be started and with an error when a recording is
// already in progress.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return fmt.Errorf("recording already in progress")
	}

	enc, err := encoder.New(r.format)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.enc = enc
	r.sampleBuf = nil
	r.totalFrames = 0
	r.hadSpeech = false
	r.blockChan = make(chan []int16, 64)
	r.encodeDone = make(chan struct{})
	r.tickStop = make(chan struct{})
	r.state = stateRecording
	r.mu.Unlock()

	go func() {
		defer close(r.encodeDone)
		for block := range r.blockChan {
			start := time.Now()
			enc.EncodeBlock(block)
			enc.AddEncodeTime(time.Since(start))
		}
	}()

	r.capture.SetCallback(r.onData)
	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		r.abortPipeline()
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	go r.tickLoop()
	return nil
}

func (r *Recorder) onData(data []byte, frameCount uint32) {
	r.mu.Lock()
	if r.state != stateRecording {
		r.mu.Unlock()
		return
	}
	r.totalFrames += uint64(frameCount)

	var blocks [][]int16
	for i := 0; i+1 < len(data); i += 2 {
		r.sampleBuf = append(r.sampleBuf, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	for len(r.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, r.sampleBuf[:encoder.BlockSize])
		r.sampleBuf = r.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	blockChan := r.blockChan
	r.mu.Unlock()

	for _, block := range blocks {
		blockChan <- block
	}

	if len(data) > 1 {
		rms := rmsLevel(data)
		if rms >= speechRMSThreshold {
			r.mu.Lock()
			r.hadSpeech = true
			r.mu.Unlock()
		}
		if r.events.Level != nil {
			r.events.Level(rms)
		}
	}
}

// rmsLevel computes the normalized root-mean-square of a PCM16 buffer.
func rmsLevel(data []byte) float64 {
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}

func (r *Recorder) tickLoop() {
	mon := newSilenceMonitor()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.tickStop:
			return
		case <-ticker.C:
			r.mu.Lock()
			paused := r.state == statePaused
			speech := r.hadSpeech
			r.hadSpeech = false
			elapsed := r.elapsedLocked()
			r.mu.Unlock()

			if paused {
				continue
			}
			if r.events.Tick != nil {
				r.events.Tick(elapsed)
			}
			switch mon.Tick(speech) {
			case SilenceWarn:
				if r.events.Silence != nil {
					r.events.Silence(true)
				}
			case SilenceClear:
				if r.events.Silence != nil {
					r.events.Silence(false)
				}
			}
		}
	}
}

// Pause suspends capture without finalizing the file. Incoming data is
// dropped while paused, so elapsed time does not advance.
func (r *Recorder) Pause() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateRecording {
		return false
	}
	r.state = statePaused
	return true
}

func (r *Recorder) Resume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != statePaused {
		return false
	}
	r.state = stateRecording
	return true
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateRecording
}

func (r *Recorder) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == statePaused
}

// Elapsed reports captured audio time, excluding paused intervals.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedLocked()
}

func (r *Recorder) elapsedLocked() time.Duration {
	return time.Duration(float64(r.totalFrames) / float64(encoder.SampleRate) * float64(time.Second))
}

// Stop finalizes the recording and writes a single audio file into the
// cache directory, returning its path. Fails with ErrNoAudio when
// nothing usable was captured; the recorder is idle afterwards either
// way.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if r.state == stateIdle {
		r.mu.Unlock()
		return "", fmt.Errorf("not recording")
	}
	r.state = stateIdle
	r.mu.Unlock()

	r.capture.Stop()
	r.capture.ClearCallback()
	close(r.tickStop)

	r.mu.Lock()
	if len(r.sampleBuf) > 0 {
		partial := make([]int16, len(r.sampleBuf))
		copy(partial, r.sampleBuf)
		r.sampleBuf = nil
		r.mu.Unlock()
		r.blockChan <- partial
		r.mu.Lock()
	}
	enc := r.enc
	frames := r.totalFrames
	r.mu.Unlock()

	close(r.blockChan)
	<-r.encodeDone

	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalizing audio: %w", err)
	}

	if frames < minFrames {
		return "", ErrNoAudio
	}

	name := fmt.Sprintf("rec-%s.%s", time.Now().Format("20060102-150405"), enc.Ext())
	path := filepath.Join(r.cacheDir, name)
	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.WriteFile(path, enc.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing recording: %w", err)
	}
	return path, nil
}

// Clear aborts an in-progress recording and discards everything
// captured so far.
func (r *Recorder) Clear() {
	r.mu.Lock()
	if r.state == stateIdle {
		r.mu.Unlock()
		return
	}
	r.state = stateIdle
	r.mu.Unlock()

	r.capture.Stop()
	r.capture.ClearCallback()
	close(r.tickStop)
	close(r.blockChan)
	<-r.encodeDone
	r.enc.Close()

	r.mu.Lock()
	r.sampleBuf = nil
	r.totalFrames = 0
	r.mu.Unlock()
}

func (r *Recorder) abortPipeline() {
	r.mu.Lock()
	r.state = stateIdle
	blockChan := r.blockChan
	r.mu.Unlock()
	close(blockChan)
	<-r.encodeDone
}

// Discard removes a recording file produced by Stop. Missing files are
// not an error.
func Discard(path string) {
	if path == "" {
		return
	}
	os.Remove(path)
}
