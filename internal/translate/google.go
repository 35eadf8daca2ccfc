package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const googleEndpoint = "https://translate.googleapis.com/translate_a/single"

// Google calls the public gtx endpoint. It needs no API key.
type Google struct {
	Endpoint string
	Client   *http.Client
}

func NewGoogle(client *http.Client) *Google {
	if client == nil {
		client = http.DefaultClient
	}
	return &Google{Endpoint: googleEndpoint, Client: client}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Translate(ctx context.Context, text, src, dst string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", src)
	params.Set("tl", dst)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("google translate: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return parseGoogleResponse(body)
}

// parseGoogleResponse concatenates the translated segments found at
// resp[0][i][0].
func parseGoogleResponse(body []byte) (string, error) {
	var resp []any
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	if len(resp) == 0 {
		return "", errors.New("google translate: empty response")
	}
	segments, ok := resp[0].([]any)
	if !ok {
		return "", errors.New("google translate: unexpected response shape")
	}
	var b strings.Builder
	for _, s := range segments {
		seg, ok := s.([]any)
		if !ok || len(seg) == 0 {
			continue
		}
		if part, ok := seg[0].(string); ok {
			b.WriteString(part)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("google translate: no translated segments")
	}
	return b.String(), nil
}
