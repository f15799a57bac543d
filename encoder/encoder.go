package encoder

import (
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder turns blocks of PCM16 samples into a complete audio file
// held in memory. Blocks may arrive from the capture callback while
// Bytes is not yet valid; Close finalizes the container.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
	// Ext is the file extension (without dot) of the produced container.
	Ext() string
}

// New returns an encoder for the given settings value ("flac" or "wav").
func New(format string) (Encoder, error) {
	switch format {
	case "flac":
		return NewFlac()
	case "wav":
		return NewWav(), nil
	}
	return nil, fmt.Errorf("unknown audio format %q (use flac or wav)", format)
}
