package spondmodule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redbridgehc/clubhouse/internal/config"
)

// GroupPayload is a group as returned by the external API. Subgroups may
// arrive nested or as bare id strings.
type GroupPayload struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	SubGroups []json.RawMessage `json:"subGroups"`
	Members   []MemberPayload  `json:"members"`
}

// MemberPayload is a member as returned by the external API.
type MemberPayload struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	SubGroups []string `json:"subGroups"`
}

// EventPayload is an event as returned by the external API.
type EventPayload struct {
	ID      string    `json:"id"`
	Heading string    `json:"heading"`
	StartAt time.Time `json:"startTimestamp"`
	EndAt   time.Time `json:"endTimestamp"`
	GroupID string    `json:"groupId"`
}

// API is the subset of the external service the sync needs.
type API interface {
	Groups(ctx context.Context) ([]GroupPayload, error)
	Events(ctx context.Context, from, to time.Time) ([]EventPayload, error)
}

// Client is a bearer-token HTTP client for the external API.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
}

// NewClient builds a client from the spond config section.
func NewClient(cfg config.SpondConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		pageSize: cfg.PageSize,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spond request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("spond request %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spond response %s: %w", path, err)
	}
	return nil
}

// Groups fetches all groups with their nested subgroups and members.
func (c *Client) Groups(ctx context.Context) ([]GroupPayload, error) {
	query := url.Values{}
	if c.pageSize > 0 {
		query.Set("max", fmt.Sprint(c.pageSize))
	}
	var groups []GroupPayload
	if err := c.get(ctx, "/groups", query, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Events fetches events in the given window.
func (c *Client) Events(ctx context.Context, from, to time.Time) ([]EventPayload, error) {
	query := url.Values{}
	query.Set("minStartTimestamp", from.UTC().Format(time.RFC3339))
	query.Set("maxStartTimestamp", to.UTC().Format(time.RFC3339))
	if c.pageSize > 0 {
		query.Set("max", fmt.Sprint(c.pageSize))
	}
	var events []EventPayload
	if err := c.get(ctx, "/sponds", query, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// subgroupRef decodes one entry of GroupPayload.SubGroups, which is
// either a nested group object or a bare id string.
func subgroupRef(raw json.RawMessage) (GroupPayload, bool) {
	var nested GroupPayload
	if err := json.Unmarshal(raw, &nested); err == nil && nested.ID != "" {
		return nested, true
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return GroupPayload{ID: id}, true
	}
	return GroupPayload{}, false
}
