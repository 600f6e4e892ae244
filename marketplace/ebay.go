// Package marketplace implements the eBay listing search client backed by SerpApi.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://serpapi.com/search.json"
	defaultDomain  = "ebay.com"
	defaultTimeout = 15 * time.Second

	// maxListings bounds how many provider results are kept, in provider
	// ranking order.
	maxListings = 3

	// missingPrice is rendered when the provider omits a price.
	missingPrice = "N/A"
)

// ErrNoCredentials is returned when no search API key is configured.
// Callers should treat this as "search unavailable", not as zero results.
var ErrNoCredentials = errors.New("marketplace: search credentials not configured")

// ProviderError wraps a transport or provider-side search failure.
// It is distinct from an empty Result: the provider could not be asked.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("marketplace: %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("marketplace: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Listing is one marketplace search result.
type Listing struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail"`
}

// Result holds the top listings for a query, in provider ranking order.
type Result struct {
	Query    string
	Listings []Listing
}

// Empty reports whether the provider returned zero listings.
func (r *Result) Empty() bool {
	return len(r.Listings) == 0
}

// Markdown renders the listings as the fixed-layout text block shown to
// the user. An empty result renders as an empty string.
func (r *Result) Markdown() string {
	var sb strings.Builder
	for _, l := range r.Listings {
		fmt.Fprintf(&sb, "- **Title:** [%s](%s)\n", l.Title, l.Link)
		fmt.Fprintf(&sb, "  - **Price:** %s\n", l.Price)
		fmt.Fprintf(&sb, "  - **Link:** [View on eBay](%s)\n", l.Link)
		fmt.Fprintf(&sb, "  - **Image:** ![Image](%s)\n\n", l.Thumbnail)
	}
	return sb.String()
}

// Client searches eBay listings through SerpApi.
type Client struct {
	apiKey     string
	baseURL    string
	domain     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new search client. An empty apiKey degrades every search
// to ErrNoCredentials instead of failing construction.
func New(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		domain:     defaultDomain,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// WithBaseURL overrides the search endpoint. Useful for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// WithHTTPClient overrides the HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

type searchResponse struct {
	OrganicResults []struct {
		Title string `json:"title"`
		Price struct {
			Raw string `json:"raw"`
		} `json:"price"`
		Link      string `json:"link"`
		Thumbnail string `json:"thumbnail"`
	} `json:"organic_results"`
}

// Search issues one search against the provider and returns the top
// listings in provider order. No retries: a failed provider call surfaces
// as *ProviderError and the caller decides how to degrade.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	if c.apiKey == "" {
		c.logger.Warn("search skipped, no credentials configured")
		return nil, ErrNoCredentials
	}

	params := url.Values{}
	params.Set("engine", "ebay")
	params.Set("_nkw", query)
	params.Set("ebay_domain", c.domain)
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Op: "build request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("search request failed", "query", query, "error", err)
		return nil, &ProviderError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("search returned unexpected status", "query", query, "status", resp.StatusCode)
		return nil, &ProviderError{Op: "search", StatusCode: resp.StatusCode}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{Op: "decode response", Err: err}
	}

	result := &Result{Query: query}
	for i, entry := range decoded.OrganicResults {
		if i >= maxListings {
			break
		}
		price := entry.Price.Raw
		if price == "" {
			price = missingPrice
		}
		result.Listings = append(result.Listings, Listing{
			Title:     entry.Title,
			Price:     price,
			Link:      entry.Link,
			Thumbnail: entry.Thumbnail,
		})
	}

	c.logger.Debug("search completed", "query", query, "listings", len(result.Listings))
	return result, nil
}
