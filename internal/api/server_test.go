package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/channel-scout/internal/metrics"
	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/storage/sqlite"
	"github.com/channel-scout/internal/testutil"
	"github.com/channel-scout/pkg/logger"
	"github.com/channel-scout/pkg/ratelimit"
)

type fakeRequester struct {
	calls  atomic.Int32
	queued bool
}

func (f *fakeRequester) Request() bool {
	f.calls.Add(1)
	return f.queued
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *sqlite.Repository, *fakeRequester) {
	t.Helper()
	repo := testutil.NewRepository(t)
	scans := &fakeRequester{queued: true}
	srv := httptest.NewServer(New(repo, scans, logger.Nop(), opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, repo, scans
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestScanStart_Accepted(t *testing.T) {
	srv, _, scans := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/scan/start", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	body := decode[scanStartResponse](t, resp)
	if body.Status != "accepted" || !body.Queued {
		t.Errorf("body = %+v", body)
	}
	if scans.calls.Load() != 1 {
		t.Errorf("Request() calls = %d, want 1", scans.calls.Load())
	}
}

func TestScanStart_Coalesced(t *testing.T) {
	srv, _, scans := newTestServer(t)
	scans.queued = false

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/scan/start", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if body := decode[scanStartResponse](t, resp); body.Queued {
		t.Errorf("Queued = true, want false")
	}
}

func TestScanStart_RateLimited(t *testing.T) {
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterScanTrigger, 0.001, 1)
	srv, _, scans := newTestServer(t, WithLimiter(limiter))

	first := doRequest(t, http.MethodPost, srv.URL+"/api/scan/start", "")
	second := doRequest(t, http.MethodPost, srv.URL+"/api/scan/start", "")

	if first.StatusCode != http.StatusAccepted {
		t.Errorf("first status = %d, want 202", first.StatusCode)
	}
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.StatusCode)
	}
	if scans.calls.Load() != 1 {
		t.Errorf("Request() calls = %d, want 1", scans.calls.Load())
	}
}

func TestKeywords_CRUD(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/keywords", `{"keyword":"  bizim  "}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	kw := decode[models.Keyword](t, resp)
	if kw.Text != "bizim" || kw.Status != models.KeywordStatusActive || kw.ID == 0 {
		t.Errorf("created keyword = %+v", kw)
	}

	dup := doRequest(t, http.MethodPost, srv.URL+"/api/keywords", `{"keyword":"bizim"}`)
	if dup.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", dup.StatusCode)
	}

	url := srv.URL + "/api/keywords/" + strconvU(kw.ID)
	patch := doRequest(t, http.MethodPatch, url, `{"status":"inactive"}`)
	if patch.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", patch.StatusCode)
	}
	if updated := decode[models.Keyword](t, patch); updated.Status != models.KeywordStatusInactive {
		t.Errorf("updated status = %s, want inactive", updated.Status)
	}

	list := doRequest(t, http.MethodGet, srv.URL+"/api/keywords?status=inactive", "")
	if got := decode[[]models.Keyword](t, list); len(got) != 1 {
		t.Errorf("inactive keywords = %d, want 1", len(got))
	}

	del := doRequest(t, http.MethodDelete, url, "")
	if del.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", del.StatusCode)
	}
	if again := doRequest(t, http.MethodDelete, url, ""); again.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", again.StatusCode)
	}

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalKeywords != 0 {
		t.Errorf("TotalKeywords = %d, want 0", stats.TotalKeywords)
	}
}

func TestKeywords_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"empty keyword", http.MethodPost, "/api/keywords", `{"keyword":"   "}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/keywords", `{`, http.StatusBadRequest},
		{"bad status", http.MethodPost, "/api/keywords", `{"keyword":"x","status":"paused"}`, http.StatusBadRequest},
		{"bad id", http.MethodPatch, "/api/keywords/abc", `{"status":"active"}`, http.StatusBadRequest},
		{"unknown id", http.MethodPatch, "/api/keywords/42", `{"status":"active"}`, http.StatusNotFound},
		{"bad list filter", http.MethodGet, "/api/keywords?status=nope", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestListLimits(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"channels zero limit", "/api/channels?limit=0", http.StatusBadRequest},
		{"channels negative limit", "/api/channels?limit=-1", http.StatusBadRequest},
		{"channels huge limit capped", "/api/channels?limit=100000", http.StatusOK},
		{"channels zero offset", "/api/channels?limit=1&offset=0", http.StatusOK},
		{"words zero limit", "/api/stats/word-frequency?limit=0", http.StatusBadRequest},
		{"words default limit", "/api/stats/word-frequency", http.StatusOK},
		{"logs zero limit", "/api/logs?limit=0", http.StatusBadRequest},
		{"logs positive limit", "/api/logs?limit=3", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+tt.path, "")
			if resp.StatusCode != tt.want {
				t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestChannelsSearchAndStats(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	ctx := context.Background()

	kw := testutil.CreateKeyword(t, repo, "bread", models.KeywordStatusActive)
	phone := "+77010000000"
	ch := &models.Channel{
		KeywordID:   kw.ID,
		PlatformID:  11,
		Name:        "Bread Corner",
		PhoneNumber: &phone,
		URL:         "https://t.me/breadcorner",
		ScannedAt:   time.Now().UTC(),
	}
	if err := repo.CreateChannel(ctx, ch); err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	if _, err := repo.InsertMessage(ctx, &models.Message{ChannelID: ch.ID, PlatformID: 1, Text: "warm bread daily", Date: time.Now().UTC()}); err != nil {
		t.Fatalf("InsertMessage() error = %v", err)
	}
	if err := repo.IncrementWordCounts(ctx, kw.ID, map[string]int{"bread": 4, "warm": 1}, time.Now().UTC()); err != nil {
		t.Fatalf("IncrementWordCounts() error = %v", err)
	}
	if err := repo.CreateScanLog(ctx, &models.ScanLog{KeywordID: &kw.ID, Status: models.ScanStatusSuccess, Message: "Found 1 new channels"}); err != nil {
		t.Fatalf("CreateScanLog() error = %v", err)
	}

	channels := decode[[]models.Channel](t, doRequest(t, http.MethodGet, srv.URL+"/api/channels?has_phone=true", ""))
	if len(channels) != 1 || channels[0].URL != "https://t.me/breadcorner" {
		t.Errorf("channels = %+v", channels)
	}
	none := decode[[]models.Channel](t, doRequest(t, http.MethodGet, srv.URL+"/api/channels?has_location=true", ""))
	if len(none) != 0 {
		t.Errorf("channels with location = %d, want 0", len(none))
	}

	search := decode[searchResponse](t, doRequest(t, http.MethodGet, srv.URL+"/api/search?q=bread", ""))
	if len(search.Messages) != 1 || len(search.Channels) != 1 {
		t.Errorf("search = %d messages, %d channels, want 1 and 1", len(search.Messages), len(search.Channels))
	}
	if resp := doRequest(t, http.MethodGet, srv.URL+"/api/search", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty search status = %d, want 400", resp.StatusCode)
	}

	var stats struct {
		TotalKeywords     int64                  `json:"total_keywords"`
		TotalChannels     int64                  `json:"total_channels"`
		ChannelsWithPhone int64                  `json:"channels_with_phone"`
		TotalMessages     int64                  `json:"total_messages"`
		RecentLogs        []models.ScanLog       `json:"recent_logs"`
		TopWords          []models.WordFrequency `json:"top_words"`
	}
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/stats", "")
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalKeywords != 1 || stats.TotalChannels != 1 || stats.ChannelsWithPhone != 1 || stats.TotalMessages != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.RecentLogs) != 1 || len(stats.TopWords) != 2 || stats.TopWords[0].Word != "bread" {
		t.Errorf("dashboard lists = %+v / %+v", stats.RecentLogs, stats.TopWords)
	}

	words := decode[[]models.WordFrequency](t, doRequest(t, http.MethodGet, srv.URL+"/api/stats/word-frequency?limit=1&keyword_id="+strconvU(kw.ID), ""))
	if len(words) != 1 || words[0].Count != 4 {
		t.Errorf("word frequency = %+v", words)
	}

	logs := decode[[]models.ScanLog](t, doRequest(t, http.MethodGet, srv.URL+"/api/logs?status=success", ""))
	if len(logs) != 1 {
		t.Errorf("logs = %d, want 1", len(logs))
	}
	if resp := doRequest(t, http.MethodGet, srv.URL+"/api/logs?status=weird", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad log status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	collector.ScanFinished("success", 1, 2, 0)

	srv, _, _ := newTestServer(t, WithMetrics(reg))

	if resp := doRequest(t, http.MethodGet, srv.URL+"/health", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), `scout_keyword_scans_total{status="success"} 1`) {
		t.Errorf("metrics output missing scan counter:\n%s", body)
	}
}

func strconvU(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
