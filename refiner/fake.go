package refiner

import (
	"context"

	"quill/prompt"
)

// Fake returns canned output, still performing the library lookup so
// unknown prompt IDs fail the same way the real client does.
type Fake struct {
	Library *prompt.Library
	Text    string
	Title   string
	Err     error
}

func (f *Fake) Process(_ context.Context, _, promptID string) (string, error) {
	if f.Library != nil {
		if _, err := f.Library.Get(promptID); err != nil {
			return "", err
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *Fake) SuggestTitle(context.Context, string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Title, nil
}
