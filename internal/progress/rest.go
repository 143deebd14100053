package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PizzaHomicide/marquee/internal/log"
)

// RESTStore writes progress with PUT {base}/api/videos/{id}/progress
type RESTStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRESTStore creates a store rooted at baseURL.  A nil client gets a default with a 15s timeout.
func NewRESTStore(baseURL, token string, client *http.Client) *RESTStore {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (s *RESTStore) endpoint(identity string) string {
	return fmt.Sprintf("%s/api/videos/%s/progress", s.baseURL, url.PathEscape(identity))
}

func (s *RESTStore) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

func (s *RESTStore) SaveProgress(ctx context.Context, identity string, update Update) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint(identity), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build progress request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Trace("Saving progress", "identity", identity, "last_time", update.LastTime, "completed", update.Completed)
	resp, err := s.do(req)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to save progress: unexpected status %s", resp.Status)
	}
	return nil
}

// FetchProgress reads the saved position, which the server wraps as {"watchProgress": {...}}
func (s *RESTStore) FetchProgress(ctx context.Context, identity string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(identity), nil)
	if err != nil {
		return Record{}, fmt.Errorf("failed to build progress request: %w", err)
	}

	resp, err := s.do(req)
	if err != nil {
		return Record{}, fmt.Errorf("failed to fetch progress: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Record{}, ErrNoProgress
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Record{}, fmt.Errorf("failed to fetch progress: unexpected status %s", resp.Status)
	}

	var payload struct {
		WatchProgress *Record `json:"watchProgress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Record{}, fmt.Errorf("failed to decode progress: %w", err)
	}
	if payload.WatchProgress == nil {
		return Record{}, ErrNoProgress
	}
	return *payload.WatchProgress, nil
}
