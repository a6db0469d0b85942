// Package tapestry is the HTTP client for the external social-graph service.
// The service is treated as fallible and independently available from the
// local store; callers decide per operation whether a failure here is
// tolerated or fatal.
package tapestry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.usetapestry.dev/api/v1"

// ErrProfileNotFound means the external graph answered and has no profile for
// the query, as opposed to a transport or service failure.
var ErrProfileNotFound = errors.New("tapestry: profile not found")

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Profile is the external service's view of a user, keyed by username.
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Bio           string `json:"bio,omitempty"`
	Image         string `json:"image,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// ProfileParams are the fields pushed on profile create/update.
type ProfileParams struct {
	Username      string `json:"username"`
	Bio           string `json:"bio,omitempty"`
	Image         string `json:"image,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// Comment is the external node created for a profile comment.
type Comment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// doRequest executes an authenticated request and decodes the JSON response
// into out (when out is non-nil).
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tapestry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tapestry API error: %d - %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode tapestry response: %w", err)
		}
	}
	return nil
}

// FindOrCreateProfile creates the profile on the external graph, or returns
// the existing one for the username.
func (c *Client) FindOrCreateProfile(ctx context.Context, params ProfileParams) (*Profile, error) {
	var profile Profile
	if err := c.doRequest(ctx, http.MethodPost, "/profiles/findOrCreate", nil, params, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile pushes profile field changes keyed by username.
func (c *Client) UpdateProfile(ctx context.Context, username string, params ProfileParams) error {
	return c.doRequest(ctx, http.MethodPut, "/profiles/"+url.PathEscape(username), nil, params, nil)
}

// CreateFollow records a follow edge on the external graph.
func (c *Client) CreateFollow(ctx context.Context, followerUsername, followeeUsername string) error {
	body := map[string]string{
		"startId": followerUsername,
		"endId":   followeeUsername,
	}
	return c.doRequest(ctx, http.MethodPost, "/followers/add", nil, body, nil)
}

// DeleteFollow removes a follow edge from the external graph.
func (c *Client) DeleteFollow(ctx context.Context, followerUsername, followeeUsername string) error {
	body := map[string]string{
		"startId": followerUsername,
		"endId":   followeeUsername,
	}
	return c.doRequest(ctx, http.MethodPost, "/followers/remove", nil, body, nil)
}

// CreateComment creates a comment node attached to the target profile and
// returns the external node id.
func (c *Client) CreateComment(ctx context.Context, authorUsername, targetUsername, text string) (*Comment, error) {
	body := map[string]string{
		"profileId":       authorUsername,
		"targetProfileId": targetUsername,
		"text":            text,
	}
	var comment Comment
	if err := c.doRequest(ctx, http.MethodPost, "/comments", nil, body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// CreateLike records a like of the given external node.
func (c *Client) CreateLike(ctx context.Context, username, nodeID string) error {
	return c.doRequest(ctx, http.MethodPost, "/likes/"+url.PathEscape(nodeID), nil, map[string]string{"startId": username}, nil)
}

// DeleteLike removes a like of the given external node.
func (c *Client) DeleteLike(ctx context.Context, username, nodeID string) error {
	return c.doRequest(ctx, http.MethodDelete, "/likes/"+url.PathEscape(nodeID), nil, map[string]string{"startId": username}, nil)
}

// GetFollowers returns profiles following the given username.
func (c *Client) GetFollowers(ctx context.Context, username string) ([]Profile, error) {
	var out struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/profiles/"+url.PathEscape(username)+"/followers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

// GetFollowing returns profiles the given username follows.
func (c *Client) GetFollowing(ctx context.Context, username string) ([]Profile, error) {
	var out struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/profiles/"+url.PathEscape(username)+"/following", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

// GetSuggestedProfiles returns profiles suggested for the given wallet.
func (c *Client) GetSuggestedProfiles(ctx context.Context, walletAddress string) ([]Profile, error) {
	query := url.Values{}
	query.Set("ownerWalletAddress", walletAddress)
	var out struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/profiles/suggested", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

// GetProfileByWallet resolves an external identity by wallet address.
func (c *Client) GetProfileByWallet(ctx context.Context, walletAddress string) (*Profile, error) {
	query := url.Values{}
	query.Set("walletAddress", walletAddress)
	var out struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/identities", query, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Profiles) == 0 {
		return nil, fmt.Errorf("%w: wallet %s", ErrProfileNotFound, walletAddress)
	}
	return &out.Profiles[0], nil
}
