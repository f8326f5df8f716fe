// Package report uploads run summaries to an optional collection endpoint,
// so benchmark preparations can be tracked across runs.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Summary describes a completed funding run.
type Summary struct {
	Accounts        int     `json:"accounts"`
	Waves           int     `json:"waves"`
	Rounds          uint64  `json:"rounds"`
	DurationSeconds float64 `json:"duration_seconds"`
	LamportsPerLeaf uint64  `json:"lamports_per_leaf"`
}

// TokenProvider yields Authorization header values, refreshing them as
// needed. pkg/authtoken implements it.
type TokenProvider interface {
	Refresh()
	HeaderValue() string
}

// Uploader posts summaries as JSON with a bearer token.
type Uploader struct {
	url    string
	tokens TokenProvider
	client *http.Client
	log    zerolog.Logger
}

// NewUploader creates an uploader for the given endpoint. tokens may be nil
// for endpoints that need no authorization.
func NewUploader(url string, tokens TokenProvider, log zerolog.Logger) *Uploader {
	return &Uploader{
		url:    url,
		tokens: tokens,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Upload posts the summary. Failures are for the caller to log and shrug
// off: a lost report never fails a funding run.
func (u *Uploader) Upload(ctx context.Context, s Summary) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.tokens != nil {
		u.tokens.Refresh()
		req.Header.Set("Authorization", u.tokens.HeaderValue())
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("post summary: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("summary rejected with status %s", resp.Status)
	}
	u.log.Info().Int("accounts", s.Accounts).Msg("run summary uploaded")
	return nil
}
