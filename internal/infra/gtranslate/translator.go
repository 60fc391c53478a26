// Package gtranslate adapts the public Google Translate endpoint.
package gtranslate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

const defaultEndpoint = "https://translate.google.com/translate_a/single"

type Translator struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewTranslator(endpoint string, client *http.Client, logger *zap.Logger) *Translator {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Translator{endpoint: endpoint, client: client, logger: logger}
}

// Translate passes empty input and provider failures through: the worst case
// is narrating the untranslated text, never a failed run.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if text == "" || sourceLang == targetLang {
		return text, nil
	}

	translated, err := t.call(ctx, text, sourceLang, targetLang)
	if err != nil {
		if ctx.Err() != nil {
			return text, ctx.Err()
		}
		t.logger.Warn("translation failed, passing original text through", zap.Error(err))
		return text, nil
	}
	return translated, nil
}

func (t *Translator) call(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", sourceLang)
	q.Set("tl", targetLang)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return parseResponse(body)
}

// parseResponse unpacks the endpoint's nested-array payload
// ([[["<translated>","<original>",...],...],...]) with explicit shape checks
// instead of walking untyped interface values.
func parseResponse(body []byte) (string, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil || len(outer) == 0 {
		return "", &entity.ParseError{Field: "translate response", Reason: "not a non-empty array"}
	}

	var sentences []json.RawMessage
	if err := json.Unmarshal(outer[0], &sentences); err != nil || len(sentences) == 0 {
		return "", &entity.ParseError{Field: "translate response[0]", Reason: "not a non-empty array"}
	}

	var result string
	for _, s := range sentences {
		var parts []json.RawMessage
		if err := json.Unmarshal(s, &parts); err != nil || len(parts) == 0 {
			return "", &entity.ParseError{Field: "translate sentence", Reason: "not a non-empty array"}
		}
		var segment string
		if err := json.Unmarshal(parts[0], &segment); err != nil {
			return "", &entity.ParseError{Field: "translate sentence[0]", Reason: "not a string"}
		}
		result += segment
	}
	return result, nil
}
