package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"curator/internal/services"
)

// WikipediaClient fetches page summaries used as supplementary person
// biographies. It talks to the REST summary endpoint and treats a missing
// page as an empty result rather than a failure.
type WikipediaClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewWikipediaClient builds a summary client. The user agent is required by
// the Wikimedia API policy.
func NewWikipediaClient(baseURL, userAgent string) *WikipediaClient {
	return &WikipediaClient{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type wikipediaSummary struct {
	Extract string `json:"extract"`
	Type    string `json:"type"`
}

// Summary returns the lead extract for a page title, or empty when the page
// does not exist or is a disambiguation page.
func (c *WikipediaClient) Summary(ctx context.Context, title string) (string, error) {
	endpoint := c.baseURL + "/page/summary/" + url.PathEscape(title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "wikipedia", "build request", title, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "wikipedia", "request", title, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", services.Wrap(services.ErrRateLimited, "wikipedia", "request", title, nil)
	case resp.StatusCode >= 500:
		return "", services.Wrap(services.ErrTransient, "wikipedia", "request",
			fmt.Sprintf("%s returned %d", title, resp.StatusCode), nil)
	default:
		return "", services.Wrap(services.ErrValidation, "wikipedia", "request",
			fmt.Sprintf("%s returned %d", title, resp.StatusCode), nil)
	}

	var summary wikipediaSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return "", services.Wrap(services.ErrTransient, "wikipedia", "decode", title, err)
	}
	if summary.Type == "disambiguation" {
		return "", nil
	}
	return summary.Extract, nil
}
