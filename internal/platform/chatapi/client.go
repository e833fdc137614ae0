// Package chatapi is the client for the chat platform's export API, the
// collaborator that owns the raw message history and the member roster.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"chatvault/internal/ingest/models"
	"chatvault/internal/platform/privacy"
	dErrors "chatvault/pkg/domain-errors"
)

const defaultTimeout = 30 * time.Second

// Config holds export API connection settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the export API over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat api base url not configured")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid chat api base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type messagePayload struct {
	UserID    string    `json:"user_id"`
	Rank      string    `json:"rank"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type memberPayload struct {
	UserID string `json:"user_id"`
	Rank   string `json:"rank"`
}

// History fetches a bounded window of channel messages, newest first as
// served by the API. Raw IDs and plaintext stay inside the process; the
// caller anonymizes before anything is persisted.
func (c *Client) History(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	endpoint := fmt.Sprintf("%s/v1/channels/%s/messages?limit=%s",
		c.baseURL, url.PathEscape(channelID), strconv.Itoa(limit))

	var payload []messagePayload
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(payload))
	for _, m := range payload {
		messages = append(messages, models.Message{
			UserID:    m.UserID,
			Rank:      m.Rank,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		})
	}
	return messages, nil
}

// members fetches the channel roster with each member's current rank.
func (c *Client) members(ctx context.Context, channelID string) ([]memberPayload, error) {
	endpoint := fmt.Sprintf("%s/v1/channels/%s/members", c.baseURL, url.PathEscape(channelID))
	var payload []memberPayload
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build chat api request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "chat api unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dErrors.New(dErrors.CodeStorage, fmt.Sprintf("chat api returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "decode chat api response")
	}
	return nil
}

// rosterTTL bounds how stale a cached roster may get during a pass.
const rosterTTL = time.Minute

// Ranks resolves subject ranks from the channel roster. The roster is
// keyed by raw IDs on the wire, so the index is rebuilt digest-first:
// raw IDs are hashed on arrival and never kept.
type Ranks struct {
	client    *Client
	channelID string

	mu       sync.Mutex
	byDigest map[string]string
	fetched  time.Time
}

func NewRanks(client *Client, channelID string) *Ranks {
	return &Ranks{client: client, channelID: channelID}
}

// HighestRank reports the roster rank for a subject digest, refreshing
// the cached roster when it has gone stale.
func (r *Ranks) HighestRank(ctx context.Context, subjectDigest string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byDigest == nil || time.Since(r.fetched) > rosterTTL {
		members, err := r.client.members(ctx, r.channelID)
		if err != nil {
			return "", false, err
		}
		index := make(map[string]string, len(members))
		for _, m := range members {
			index[privacy.SubjectDigest(m.UserID)] = m.Rank
		}
		r.byDigest = index
		r.fetched = time.Now()
	}

	rank, ok := r.byDigest[subjectDigest]
	return rank, ok, nil
}
