package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/contactkeval/roll-monitor/internal/cache"
	"github.com/contactkeval/roll-monitor/internal/data"
	"github.com/contactkeval/roll-monitor/internal/roll"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cache.New())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, body
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("health check failed: %d %q", resp.StatusCode, body)
	}
}

func TestReportsBeforeFirstScan(t *testing.T) {
	_, srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/api/v1/reports")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before any scan, got %d", resp.StatusCode)
	}
}

func TestReportsAfterPublish(t *testing.T) {
	s, srv := newTestServer(t)
	s.Publish("scan-1", []roll.Report{{
		Outcome:  roll.OutcomeNoCandidates,
		Position: data.Position{Symbol: "SPY", Strike: 450, Expiry: "20260918"},
	}})

	resp, body := get(t, srv.URL+"/api/v1/reports")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.ScanID != "scan-1" || len(snap.Reports) != 1 {
		t.Fatalf("wrong snapshot: %+v", snap)
	}
	if snap.Reports[0].Position.Symbol != "SPY" {
		t.Fatalf("report lost in transit: %+v", snap.Reports[0])
	}
}

func TestPublishReplacesSnapshot(t *testing.T) {
	s, srv := newTestServer(t)
	s.Publish("scan-1", nil)
	s.Publish("scan-2", nil)

	_, body := get(t, srv.URL+"/api/v1/reports")
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.ScanID != "scan-2" {
		t.Fatalf("latest publish should win, got %s", snap.ScanID)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	s, srv := newTestServer(t)
	s.quotes.Get(cache.UnderlyingKey("SPY")) // one miss

	_, body := get(t, srv.URL+"/api/v1/cache/stats")
	var stats cache.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.TotalRequests != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMarketStatusEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/api/v1/market/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.Reason == "" {
		t.Fatalf("status should carry a reason")
	}
}

func TestZstdNegotiation(t *testing.T) {
	s, srv := newTestServer(t)
	s.Publish("scan-1", nil)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/reports", nil)
	req.Header.Set("Accept-Encoding", "zstd")

	// A plain transport so the stdlib does not inject its own encoding.
	resp, err := (&http.Transport{}).RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Encoding"); got != "zstd" {
		t.Fatalf("expected zstd content encoding, got %q", got)
	}

	dec, err := zstd.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var snap Snapshot
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		t.Fatalf("decoding compressed snapshot: %v", err)
	}
	if snap.ScanID != "scan-1" {
		t.Fatalf("wrong snapshot through compression: %+v", snap)
	}
}

func TestUncompressedByDefault(t *testing.T) {
	s, srv := newTestServer(t)
	s.Publish("scan-1", nil)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/reports", nil)
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") == "zstd" {
		t.Fatalf("client without zstd support must get plain JSON")
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding plain snapshot: %v", err)
	}
}
