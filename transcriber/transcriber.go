// Package transcriber uploads recorded audio files to cloud
// speech-to-text endpoints and returns plain transcripts.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrAuth reports a rejected or missing API key.
	ErrAuth = errors.New("transcription auth failed")
	// ErrNetwork reports a transport-level failure (timeout, refused
	// connection, DNS).
	ErrNetwork = errors.New("transcription network error")
	// ErrAPI reports a non-2xx response that is not an auth failure.
	ErrAPI = errors.New("transcription API error")
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	NoSpeech     bool // endpoint returned no usable speech
	Metrics      *NetworkMetrics
	RateLimit    string // "remaining/limit"
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

// Transcriber is a batch speech-to-text provider. Implementations do
// not retry; callers surface errors to the user directly.
type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// New picks a provider by name. An empty name selects whichever
// provider has a key, preferring OpenAI.
func New(provider, openaiKey, groqKey string) (Transcriber, error) {
	switch provider {
	case "openai":
		if openaiKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key not set", ErrAuth)
		}
		return NewOpenAI(openaiKey), nil
	case "groq":
		if groqKey == "" {
			return nil, fmt.Errorf("%w: Groq API key not set", ErrAuth)
		}
		return NewGroq(groqKey), nil
	case "":
		if openaiKey != "" {
			return NewOpenAI(openaiKey), nil
		}
		if groqKey != "" {
			return NewGroq(groqKey), nil
		}
		return nil, fmt.Errorf("%w: no API key configured", ErrAuth)
	}
	return nil, fmt.Errorf("unknown transcription provider %q", provider)
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(provider string, status int, body []byte) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %s rejected the API key (HTTP %d)", ErrAuth, provider, status)
	}
	return fmt.Errorf("%w: %s HTTP %d: %s", ErrAPI, provider, status, truncate(body, 200))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
