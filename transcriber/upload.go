package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// upload POSTs an audio file as multipart form data with the given
// extra fields and bearer key, mapping transport failures onto
// ErrNetwork and non-2xx responses onto ErrAuth/ErrAPI.
func (b *baseTranscriber) upload(ctx context.Context, provider, apiKey, audioPath string, fields [][2]string) (*TracedResponse, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}

	for _, f := range fields {
		writer.WriteField(f[0], f[1])
	}
	if b.lang != "" {
		writer.WriteField("language", b.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", b.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(provider, resp.StatusCode, resp.Body)
	}
	return resp, nil
}
