package port

import "context"

// Translator tolerates empty input and provider failure by returning the
// original text; a non-nil error is reserved for context cancellation.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
