// Package roblox talks to the Roblox public web APIs: username resolution,
// profile description and group membership. All calls are bounded by the
// client timeout so provider latency cannot stall a request indefinitely.
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/helios-portal/helios-portal/internal/shared"
)

const (
	defaultUsersBase  = "https://users.roblox.com"
	defaultGroupsBase = "https://groups.roblox.com"
)

// ErrUserNotFound indicates the username does not resolve to an account.
var ErrUserNotFound = errors.New("roblox: user not found")

// GroupRole is the rank a user holds in one group.
type GroupRole struct {
	Rank int
	Name string
}

// Client is the HTTP client for the Roblox APIs.
type Client struct {
	http       *http.Client
	usersBase  string
	groupsBase string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURLs overrides the API hosts, used by tests.
func WithBaseURLs(usersBase, groupsBase string) Option {
	return func(c *Client) {
		c.usersBase = usersBase
		c.groupsBase = groupsBase
	}
}

// NewClient constructs a Client with the given per-call timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: timeout},
		usersBase:  defaultUsersBase,
		groupsBase: defaultGroupsBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveUsername maps a username to its numeric account id.
func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	body, err := json.Marshal(map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.usersBase+"/v1/usernames/users", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("roblox: resolve username: %w", shared.ErrExternalService)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("roblox: resolve username status %d: %w", resp.StatusCode, shared.ErrExternalService)
	}
	var payload struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	if len(payload.Data) == 0 {
		return 0, ErrUserNotFound
	}
	return payload.Data[0].ID, nil
}

// GetUserBio fetches the free-text profile description.
func (c *Client) GetUserBio(ctx context.Context, userID int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/users/%d", c.usersBase, userID), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("roblox: fetch bio: %w", shared.ErrExternalService)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("roblox: fetch bio status %d: %w", resp.StatusCode, shared.ErrExternalService)
	}
	var payload struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Description, nil
}

// GetGroupRole returns the role the user holds in the group, or nil when
// the user is not a member.
func (c *Client) GetGroupRole(ctx context.Context, userID, groupID int64) (*GroupRole, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v2/users/%d/groups/roles", c.groupsBase, userID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roblox: fetch group roles: %w", shared.ErrExternalService)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roblox: fetch group roles status %d: %w", resp.StatusCode, shared.ErrExternalService)
	}
	var payload struct {
		Data []struct {
			Group struct {
				ID int64 `json:"id"`
			} `json:"group"`
			Role struct {
				Rank int    `json:"rank"`
				Name string `json:"name"`
			} `json:"role"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	for _, entry := range payload.Data {
		if entry.Group.ID == groupID {
			return &GroupRole{Rank: entry.Role.Rank, Name: entry.Role.Name}, nil
		}
	}
	return nil, nil
}
