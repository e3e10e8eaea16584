/**
 * @description
 * This file provides a client for the company-directory service. The directory
 * owns company profiles; the only thing this service asks of it is whether a
 * user's company carries an override email for balance resolution.
 */
package companyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// OverrideLookup is the directory's answer for one user.
type OverrideLookup struct {
	ResolutionEmail string `json:"resolution_email"`
}

// Client provides methods to interact with the company-directory service.
type Client struct {
	baseURL     string
	internalKey string
	httpClient  *http.Client
}

// NewClient creates a new company-directory client.
func NewClient(baseURL, internalKey string) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		internalKey: internalKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetOverrideEmail returns the company-level override address for a user, or
// "" when the company has none configured. A 404 is a normal "no override"
// answer, not an error.
func (c *Client) GetOverrideEmail(ctx context.Context, userID string) (string, error) {
	url := fmt.Sprintf("%s/internal/companies/users/%s/resolution-email", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Internal-API-Key", c.internalKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call company directory: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("level=warn component=companyclient msg=\"directory returned non-success status\" status=%d body=%s", resp.StatusCode, string(body))
		return "", fmt.Errorf("company directory returned status %d", resp.StatusCode)
	}

	var lookup OverrideLookup
	if err := json.Unmarshal(body, &lookup); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return strings.TrimSpace(lookup.ResolutionEmail), nil
}
