package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/deploytrack/internal/model"
)

// Prober fetches a target service's health endpoint and normalizes the
// response. Requests are bounded by the client timeout; a probe that
// exceeds it is reported as a failure.
type Prober struct {
	client *http.Client
	logger zerolog.Logger
}

func NewProber(timeout time.Duration, logger zerolog.Logger) *Prober {
	return &Prober{
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "health-prober").Logger(),
	}
}

// Probe GETs baseURL+path, decodes the JSON body, and normalizes it
// under the given shape hint.
func (p *Prober) Probe(ctx context.Context, baseURL, path string, hint Shape) (*model.HealthRecord, error) {
	url := strings.TrimRight(baseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create health request for %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health probe %s: %w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health probe %s: unexpected status %d", url, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode health response from %s: %w", url, err)
	}

	rec, err := Normalize(payload, hint)
	if err != nil {
		return nil, fmt.Errorf("normalize health response from %s: %w", url, err)
	}

	p.logger.Debug().Str("url", url).Str("release", rec.Release).Msg("health probe ok")
	return rec, nil
}
