package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("test-key", srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestFetchBatch(t *testing.T) {
	var gotIDs, gotKey string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("id")
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, `{"items":[
			{"id":"abc","snippet":{"title":"First","channelId":"UC1","channelTitle":"Chan One","publishedAt":"2024-03-01T10:00:00Z","thumbnails":{"default":{"url":"https://img/abc.jpg"}}}},
			{"id":"def","snippet":{"title":"Second","channelId":"UC2","channelTitle":"Chan Two"}}
		]}`)
	})

	items, err := c.FetchBatch(context.Background(), []string{"abc", "def", "ghi"})
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}

	if gotIDs != "abc,def,ghi" {
		t.Errorf("id param = %q", gotIDs)
	}
	if gotKey != "test-key" {
		t.Errorf("key param = %q", gotKey)
	}
	// "ghi" is unknown to the catalog and simply absent.
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Title != "First" || items[0].ChannelID != "UC1" {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[0].PublishedAt == nil {
		t.Error("expected published_at parsed")
	}
	if items[0].ThumbnailURL != "https://img/abc.jpg" {
		t.Errorf("thumbnail = %q", items[0].ThumbnailURL)
	}
	if items[1].PublishedAt != nil {
		t.Error("missing published_at should stay nil")
	}
}

func TestFetchBatch_EmptyIDs(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty id list")
	})
	items, err := c.FetchBatch(context.Background(), nil)
	if err != nil || items != nil {
		t.Fatalf("got %v, %v", items, err)
	}
}

func TestFetchBatch_OverLimit(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized batch must be rejected client-side")
	})
	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%d", i)
	}
	if _, err := c.FetchBatch(context.Background(), ids); err == nil {
		t.Fatal("expected error for oversized batch")
	}
}

func TestFetchBatch_QuotaExceeded(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"quota exhausted","errors":[{"reason":"quotaExceeded"}]}}`)
	})

	_, err := c.FetchBatch(context.Background(), []string{"abc"})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Errorf("error should carry API message: %v", err)
	}
}

func TestFetchBatch_ServerError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.FetchBatch(context.Background(), []string{"abc"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrQuotaExceeded) {
		t.Error("500 must not be classified as quota exhaustion")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "http://example.com"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("k", ""); err == nil {
		t.Error("expected error for empty base url")
	}
}
