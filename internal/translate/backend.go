package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// BackendConfig selects and configures a Backend.
type BackendConfig struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	HTTPClient   *http.Client
}

// NewBackend builds the configured backend. The returned closer releases
// backend resources and is never nil.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "google":
		return NewGoogle(cfg.HTTPClient), nopCloser{}, nil
	case "gemini":
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return g, g, nil
	case "none", "off":
		return None{}, nopCloser{}, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown translate provider %q", cfg.Provider)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
