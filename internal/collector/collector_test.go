package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/review"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/resilience"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	return nil
}

func testClient(baseURL string, cache PageCache, m *metrics.Metrics) *Client {
	return NewClient(ClientConfig{
		BaseURL:           baseURL,
		RequestTimeout:    time.Second,
		RetryAttempts:     3,
		RetryInitialDelay: time.Millisecond,
		BreakerThreshold:  10,
	}, cache, m)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// fakeAPI serves a category of items and their reviews. reviews maps item
// ID to its review count; the API pages with a fixed limit of 2.
func fakeAPI(t *testing.T, items []string, reviews map[string]int) *httptest.Server {
	t.Helper()
	const apiLimit = 2
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset := atoi(q.Get("offset"))
		switch {
		case r.URL.Path == "/"+ItemsResource:
			var results []Item
			for i := offset; i < len(items) && i < offset+apiLimit; i++ {
				results = append(results, Item{ID: items[i], Title: "item " + items[i], CategoryID: q.Get("category")})
			}
			writeJSON(w, Page{Paging: &Paging{Total: len(items), Offset: offset, Limit: apiLimit}, Results: results})
		case strings.HasPrefix(r.URL.Path, "/"+ReviewsResource+"/"):
			id := strings.TrimPrefix(r.URL.Path, "/"+ReviewsResource+"/")
			n, ok := reviews[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			var out []APIReview
			for i := offset; i < n && i < offset+apiLimit; i++ {
				out = append(out, APIReview{ID: int64(i + 1), Content: fmt.Sprintf("review %d of %s", i, id), Rate: float64(1 + i%5)})
			}
			writeJSON(w, Page{Paging: &Paging{Total: n, Offset: offset, Limit: apiLimit}, Reviews: out})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClientURL(t *testing.T) {
	c := testClient("https://api.example.com/", nil, nil)
	got := c.URL(ReviewsResource, "MLA 1", url.Values{"limit": {"50"}})
	if got != "https://api.example.com/reviews/item/MLA%201?limit=50" {
		t.Errorf("URL = %s", got)
	}
}

func TestPagerWalksAndResets(t *testing.T) {
	srv := fakeAPI(t, []string{"A", "B", "C", "D", "E"}, nil)
	defer srv.Close()
	p := testClient(srv.URL, nil, nil).NewPager(ItemsResource, "", url.Values{"category": {"MLA1"}}, 50)

	collect := func() []string {
		var ids []string
		for {
			page, err := p.Next(context.Background())
			if errors.Is(err, io.EOF) {
				return ids
			}
			if err != nil {
				t.Fatal(err)
			}
			for _, it := range page.Results {
				ids = append(ids, it.ID)
			}
		}
	}
	first := collect()
	if strings.Join(first, "") != "ABCDE" {
		t.Fatalf("ids = %v", first)
	}
	if _, err := p.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("after end: %v", err)
	}
	p.Reset()
	if again := collect(); strings.Join(again, "") != "ABCDE" {
		t.Fatalf("after Reset ids = %v", again)
	}
}

func TestPagerWithoutPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"reviews": []APIReview{{ID: 1}}})
	}))
	defer srv.Close()
	p := testClient(srv.URL, nil, nil).NewPager(ReviewsResource, "X", nil, 10)
	if _, err := p.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("second page: %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]int{"n": 1})
	}))
	defer srv.Close()
	m := metrics.New()
	c := testClient(srv.URL, nil, m)
	var out map[string]int
	if err := c.GetJSON(context.Background(), "x", "", nil, &out); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 || out["n"] != 1 {
		t.Errorf("calls = %d out = %v", calls.Load(), out)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	var out map[string]any
	err := testClient(srv.URL, nil, nil).GetJSON(context.Background(), "x", "", nil, &out)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusForbidden {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, apperrors.ErrUpstream) || calls.Load() != 1 {
		t.Errorf("err = %v calls = %d", err, calls.Load())
	}
}

func TestClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	var out map[string]any
	err := testClient(srv.URL, nil, nil).GetJSON(context.Background(), "x", "", nil, &out)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClientBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := NewClient(ClientConfig{
		BaseURL:             srv.URL,
		RetryAttempts:       2,
		RetryInitialDelay:   time.Millisecond,
		BreakerThreshold:    2,
		BreakerResetTimeout: time.Hour,
	}, nil, nil)
	var out map[string]any
	c.GetJSON(context.Background(), "x", "", nil, &out)
	err := c.GetJSON(context.Background(), "y", "", nil, &out)
	if !errors.Is(err, resilience.ErrCircuitOpen) || c.BreakerState() != resilience.StateOpen {
		t.Fatalf("err = %v state = %s", err, c.BreakerState())
	}
	if apperrors.ExitCode(err) != apperrors.ExitUnavail {
		t.Errorf("exit code = %d", apperrors.ExitCode(err))
	}
}

func TestClientServesFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]int{"n": 7})
	}))
	defer srv.Close()
	c := testClient(srv.URL, newMemCache(), nil)
	for i := 0; i < 3; i++ {
		var out map[string]int
		if err := c.GetJSON(context.Background(), "x", "", nil, &out); err != nil || out["n"] != 7 {
			t.Fatalf("GetJSON: %v %v", out, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestCollect(t *testing.T) {
	srv := fakeAPI(t, []string{"I1", "I2", "I3", "I4"}, map[string]int{"I1": 3, "I3": 5, "I4": 1})
	defer srv.Close()
	dir := t.TempDir()
	col := New(testClient(srv.URL, nil, nil), Options{
		OutputDir:         dir,
		ReviewsGoal:       100,
		MaxReviewsPerItem: 4,
		PageLimit:         50,
	}, metrics.New())

	stats, err := col.Collect(context.Background(), "MLA1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if stats.Pages != 2 || stats.Items != 3 || stats.Reviews != 3+4+1 || len(stats.Files) != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	var got []review.Review
	for _, f := range stats.Files {
		if err := review.ReadFile(f, func(r review.Review) error {
			got = append(got, r)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 8 || got[0].Category != "MLA1" || got[0].ItemKey != "I1" || got[0].Key != "1" {
		t.Errorf("first review = %+v (of %d)", got[0], len(got))
	}
}

func TestCollectStopsAtGoal(t *testing.T) {
	srv := fakeAPI(t, []string{"I1", "I2", "I3", "I4"}, map[string]int{"I1": 3, "I2": 3, "I3": 3, "I4": 3})
	defer srv.Close()
	col := New(testClient(srv.URL, nil, nil), Options{
		OutputDir:         t.TempDir(),
		ReviewsGoal:       4,
		MaxReviewsPerItem: 10,
		PageLimit:         50,
	}, nil)
	stats, err := col.Collect(context.Background(), "MLA1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pages != 1 || stats.Reviews != 6 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCollectAllRequiresCategories(t *testing.T) {
	col := New(testClient("http://unused", nil, nil), Options{}, nil)
	if _, err := col.CollectAll(context.Background(), nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}
