// Package refiner runs transcripts through a chat-completion endpoint
// using a prompt from the library, and suggests filenames for notes.
package refiner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"quill/prompt"
)

var (
	// ErrAuth reports a rejected or missing API key.
	ErrAuth = errors.New("refinement auth failed")
	// ErrNetwork reports a transport-level failure.
	ErrNetwork = errors.New("refinement network error")
	// ErrAPI reports a non-2xx response that is not an auth failure.
	ErrAPI = errors.New("refinement API error")
)

const defaultModel = "gpt-3.5-turbo"

const filenamePrompt = "Generate a short, descriptive filename (without extension) based on the content of the following text. Use lowercase with hyphens between words. Keep it under 40 characters. Return the result in JSON format: {\"filename\": \"<your-filename-here>\"}"

// Refiner transforms transcript text with a selected prompt. No
// retries; errors go straight to the user.
type Refiner interface {
	Process(ctx context.Context, text, promptID string) (string, error)
	SuggestTitle(ctx context.Context, text string) (string, error)
}

// Client is a chat-completion backed Refiner.
type Client struct {
	api     *openai.Client
	library *prompt.Library
	model   string
}

func New(apiKey string, library *prompt.Library) *Client {
	return &Client{
		api:     openai.NewClient(apiKey),
		library: library,
		model:   defaultModel,
	}
}

// NewWithBaseURL points the client at an alternate endpoint. Used for
// OpenAI-compatible servers and in tests.
func NewWithBaseURL(apiKey, baseURL string, library *prompt.Library) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		library: library,
		model:   defaultModel,
	}
}

// SetModel overrides the default chat model.
func (c *Client) SetModel(model string) {
	if model != "" {
		c.model = model
	}
}

// Process looks up promptID and sends the transcript through the
// chat-completion endpoint. Prompts marked requires_json ask for a
// {"processed_text": ...} object; if the response is not valid JSON
// the raw content is returned as-is.
func (c *Client) Process(ctx context.Context, text, promptID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text to process")
	}
	p, err := c.library.Get(promptID)
	if err != nil {
		return "", err
	}

	system := p.Prompt
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	}
	if p.RequiresJSON {
		req.Messages[0].Content = system + ` Return ONLY the processed text in a JSON response with the format: {"processed_text": "<your processed text here>"}`
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrAPI)
	}
	content := resp.Choices[0].Message.Content

	if p.RequiresJSON {
		var obj struct {
			ProcessedText string `json:"processed_text"`
		}
		if json.Unmarshal([]byte(content), &obj) == nil && obj.ProcessedText != "" {
			return obj.ProcessedText, nil
		}
	}
	return content, nil
}

// SuggestTitle asks the endpoint for a short filename describing the
// note and prefixes it with the current date.
func (c *Client) SuggestTitle(ctx context.Context, text string) (string, error) {
	if len(text) > 1000 {
		text = text[:1000]
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: filenamePrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", mapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrAPI)
	}

	content := resp.Choices[0].Message.Content
	var obj struct {
		Filename string `json:"filename"`
	}
	name := strings.TrimSpace(content)
	if json.Unmarshal([]byte(content), &obj) == nil && obj.Filename != "" {
		name = obj.Filename
	}

	name = sanitizeFilename(name)
	if name == "" {
		name = "note"
	}
	return time.Now().Format("2006-01-02") + "-" + name, nil
}

// sanitizeFilename lowercases, hyphenates spaces, and drops anything
// that is not alphanumeric, hyphen, or underscore.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), " ", "-")
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// mapErr folds go-openai errors onto the package sentinels.
func mapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("%w: %v", ErrAPI, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("%w: %v", ErrAPI, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
