// Package history loads past conversation messages from the marketplace
// REST API.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/chat"
)

// SourcePrefix prefixes ids synthesized for history entries that carry none.
const SourcePrefix = "hist"

const maxBodyBytes = 8 << 20

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("history: server returned %d", e.Code)
	}
	return fmt.Sprintf("history: server returned %d: %s", e.Code, e.Body)
}

// Client fetches conversation history.
type Client struct {
	baseURL string
	http    *http.Client
	norm    chat.Normalizer
	log     *zap.Logger
}

// New creates a client for the API rooted at baseURL. A nil httpClient uses
// one with a 15s timeout.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.Named("history"),
	}
}

// Fetch returns the messages exchanged with peer, normalized and in the
// order the server sent them.
func (c *Client) Fetch(ctx context.Context, token, peer string) ([]chat.Message, error) {
	if peer == "" {
		return nil, fmt.Errorf("history: empty peer")
	}
	endpoint := c.baseURL + "/api/chat/messages/" + url.PathEscape(peer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", peer, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var envelope any
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", peer, err)
	}

	raw := chat.ExtractMessages(envelope)
	msgs := make([]chat.Message, 0, len(raw))
	for _, r := range raw {
		if _, ok := r.(map[string]any); !ok {
			c.log.Debug("malformed history entry", zap.String("peer", peer), zap.Any("entry", r))
		}
		msgs = append(msgs, c.norm.Normalize(r, SourcePrefix))
	}
	c.log.Debug("history fetched", zap.String("peer", peer), zap.Int("count", len(msgs)))
	return msgs, nil
}
