package port

import "context"

type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}
