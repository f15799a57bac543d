package encoder

import (
	"encoding/binary"
	"testing"
)

func synthSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	return samples
}

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		format string
		ext    string
	}{
		{"flac", "flac"},
		{"wav", "wav"},
	} {
		t.Run(tt.format, func(t *testing.T) {
			enc, err := New(tt.format)
			if err != nil {
				t.Fatalf("New(%q): %v", tt.format, err)
			}
			if enc.Ext() != tt.ext {
				t.Errorf("Ext() = %q, want %q", enc.Ext(), tt.ext)
			}
		})
	}
	t.Run("unknown", func(t *testing.T) {
		if _, err := New("ogg"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestFlacEncoder(t *testing.T) {
	samples := synthSamples(BlockSize*2 + BlockSize/2)

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	var totalFed uint64
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		block := samples[i:end]
		if err := enc.EncodeBlock(block); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		totalFed += uint64(len(block))
	}

	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != totalFed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), totalFed)
	}

	flacData := enc.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestWavEncoder(t *testing.T) {
	samples := synthSamples(BlockSize + BlockSize/3)

	enc := NewWav()
	if err := enc.EncodeBlock(samples[:BlockSize]); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.EncodeBlock(samples[BlockSize:]); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b := enc.Bytes()
	if len(b) != 44+len(samples)*2 {
		t.Fatalf("output length = %d, want %d", len(b), 44+len(samples)*2)
	}
	if string(b[:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != SampleRate {
		t.Errorf("sample rate in header = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("data chunk size = %d, want %d", got, len(samples)*2)
	}
	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}

	// Samples must round-trip unchanged.
	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(b[44+i*2:]))
		if got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestWavEncoderCloseIdempotent(t *testing.T) {
	enc := NewWav()
	if err := enc.EncodeBlock(synthSamples(100)); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	first := make([]byte, len(enc.Bytes()))
	copy(first, enc.Bytes())
	if err := enc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if string(first) != string(enc.Bytes()) {
		t.Error("second Close changed the output")
	}
}
