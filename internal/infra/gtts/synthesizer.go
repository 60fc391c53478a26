// Package gtts adapts the public Google Translate TTS endpoint.
package gtts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const defaultEndpoint = "https://translate.google.com/translate_tts"

type Synthesizer struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewSynthesizer(endpoint string, client *http.Client, logger *zap.Logger) *Synthesizer {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Synthesizer{endpoint: endpoint, client: client, logger: logger}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, langCode string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("q", text)
	q.Set("tl", langCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts endpoint returned %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts endpoint returned empty body")
	}

	s.logger.Debug("tts clip synthesized", zap.String("lang", langCode), zap.Int("bytes", len(audio)))
	return audio, nil
}
