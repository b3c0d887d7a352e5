// internal/common/cms/client.go
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"familyski-workers/internal/common/errors"
)

// Client talks to the directory site's CMS API, which serves the public
// resort pages. It authenticates with the client credentials flow and
// caches the token until expiry.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	// Token cache; the client is shared across worker goroutines.
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// TokenResponse holds the response from the CMS token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope,omitempty"`
}

// RevalidateResult reports which site paths the CMS rebuilt.
type RevalidateResult struct {
	Revalidated []string `json:"revalidated"`
	Failed      []string `json:"failed,omitempty"`
}

// NewClient creates a new CMS client.
func NewClient(baseURL, tokenURL, clientID, clientSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// getAccessToken fetches a new access token using the client credentials flow.
// It caches the token until expiry.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokenExpiry.After(time.Now()) && c.accessToken != "" {
		return c.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.NewCMSAuthFailedError(fmt.Sprintf("token request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	// Refresh a minute early so in-flight requests never carry a token
	// that expires mid-call.
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)

	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// RevalidatePaths asks the CMS to rebuild the given site paths so newly
// published or updated resorts appear without waiting for the next full
// build. A stale token is refreshed and the call retried once.
func (c *Client) RevalidatePaths(ctx context.Context, paths []string) (*RevalidateResult, error) {
	if len(paths) == 0 {
		return &RevalidateResult{}, nil
	}

	result, statusCode, err := c.postRevalidate(ctx, paths)
	if statusCode == http.StatusUnauthorized {
		c.invalidateToken()
		result, _, err = c.postRevalidate(ctx, paths)
	}
	if err != nil {
		return nil, err
	}

	if len(result.Failed) > 0 {
		return result, errors.NewCMSRevalidationFailedError(
			fmt.Errorf("CMS rejected %d of %d paths: %v", len(result.Failed), len(paths), result.Failed))
	}

	return result, nil
}

func (c *Client) postRevalidate(ctx context.Context, paths []string) (*RevalidateResult, int, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	payload := map[string]interface{}{
		"paths": paths,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal revalidate request: %w", err)
	}

	revalidateURL := fmt.Sprintf("%s/api/revalidate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revalidateURL, strings.NewReader(string(jsonData)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create revalidate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.NewCMSRevalidationFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read revalidate response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, errors.NewCMSAuthFailedError(string(body))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, errors.NewCMSRevalidationFailedError(
			fmt.Errorf("revalidate failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var result RevalidateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode revalidate response: %w", err)
	}

	return &result, resp.StatusCode, nil
}
