// Package catalog is the client for the external video catalog API used to
// repair missing row metadata. The API accepts at most 50 ids per call and
// charges a flat 7 quota units per call regardless of batch size.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trafficsnap/internal/model"
)

// MaxBatchSize is the catalog API's hard limit on ids per call.
const MaxBatchSize = 50

// CostPerCall is the API's quota cost per batch call, independent of how
// many ids the batch carries.
const CostPerCall = 7

// ErrQuotaExceeded signals the API rejected a call for quota reasons. A
// repair run aborts on it without committing partial enrichment.
var ErrQuotaExceeded = errors.New("catalog api quota exceeded")

// Fetcher is the batch-lookup contract the reconciliation engine depends
// on; *Client is the production implementation.
type Fetcher interface {
	FetchBatch(ctx context.Context, ids []string) ([]model.VideoMetadata, error)
}

// Client calls the catalog API over HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a catalog client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("catalog api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// videosResponse models the catalog videos endpoint payload.
type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// FetchBatch looks up metadata for up to MaxBatchSize video ids in one
// call. Ids the catalog does not know are simply absent from the result.
func (c *Client) FetchBatch(ctx context.Context, ids []string) ([]model.VideoMetadata, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds catalog limit of %d", len(ids), MaxBatchSize)
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", strings.Join(ids, ","))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			for _, e := range er.Error.Errors {
				if e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded" {
					return nil, fmt.Errorf("%s: %w", er.Error.Message, ErrQuotaExceeded)
				}
			}
		}
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("catalog status %d: %w", resp.StatusCode, ErrQuotaExceeded)
		}
		return nil, fmt.Errorf("catalog status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var vr videosResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	now := time.Now().UTC()
	items := make([]model.VideoMetadata, 0, len(vr.Items))
	for _, it := range vr.Items {
		m := model.VideoMetadata{
			VideoID:      it.ID,
			Title:        it.Snippet.Title,
			ChannelID:    it.Snippet.ChannelID,
			ChannelTitle: it.Snippet.ChannelTitle,
			ThumbnailURL: it.Snippet.Thumbnails.Default.URL,
			FetchedAt:    now,
		}
		if it.Snippet.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
				m.PublishedAt = &t
			}
		}
		items = append(items, m)
	}
	return items, nil
}
