package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type OpenAI struct {
	baseTranscriber
	apiKey string
	model  string
}

func NewOpenAI(apiKey string) *OpenAI {
	apiURL := "https://api.openai.com/v1/audio/transcriptions"
	return &OpenAI{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(apiURL),
			apiURL: apiURL,
		},
		apiKey: apiKey,
		model:  "whisper-1",
	}
}

func (o *OpenAI) Name() string { return "openai" }

// SetModel overrides the default whisper-1 model.
func (o *OpenAI) SetModel(model string) {
	if model != "" {
		o.model = model
	}
}

func (o *OpenAI) Warm() { go o.client.Warm() }

func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	resp, err := o.upload(ctx, "openai", o.apiKey, audioPath, [][2]string{
		{"model", o.model},
		{"response_format", "json"},
	})
	if err != nil {
		return nil, err
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return nil, fmt.Errorf("%w: openai response parse error: %v", ErrAPI, err)
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	text := strings.TrimSpace(oResp.Text)
	return &Result{
		Text:      text,
		NoSpeech:  text == "",
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
	}, nil
}
