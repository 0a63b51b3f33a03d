package service

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/infomodel"
)

func newTestService() (*Service, *httptest.Server) {
	model := infomodel.New(config.DefaultScoringConfig(), nil)
	svc := New(model)
	return svc, httptest.NewServer(svc.Handler())
}

func TestHealthz(t *testing.T) {
	_, srv := newTestService()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want %q", body["status"], "ok")
	}
}

func TestObserveThenStats(t *testing.T) {
	_, srv := newTestService()
	defer srv.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/observe", "application/json",
			strings.NewReader(`{"line": "user bob logged in"}`))
		if err != nil {
			t.Fatalf("POST /observe: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("observe status = %d, want 200", resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()
	var stats StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.SeenLines != 3 {
		t.Fatalf("seen_lines = %d, want 3", stats.SeenLines)
	}
	if stats.Tokens == 0 || stats.Templates == 0 {
		t.Fatalf("expected non-empty vocabulary, got %+v", stats)
	}
}

func TestScoreDoesNotMutateModel(t *testing.T) {
	_, srv := newTestService()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/score", "application/json",
		strings.NewReader(`{"line": "ERROR disk failure imminent", "level": "ERROR"}`))
	if err != nil {
		t.Fatalf("POST /score: %v", err)
	}
	defer resp.Body.Close()
	var score ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(score.Tokens) == 0 {
		t.Fatalf("expected tokens in score response, got %+v", score)
	}
	if score.LevelBonus != 0.7 {
		t.Fatalf("level_bonus = %v, want 0.7 for ERROR", score.LevelBonus)
	}

	statsResp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer statsResp.Body.Close()
	var stats StatsResponse
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.SeenLines != 0 {
		t.Fatalf("scoring must not observe, seen_lines = %d", stats.SeenLines)
	}
}

func TestScoreRejectsMalformedBody(t *testing.T) {
	_, srv := newTestService()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/score", "application/json", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("POST /score: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMetricsExposition(t *testing.T) {
	_, srv := newTestService()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/observe", "application/json",
		strings.NewReader(`{"line": "one line to register"}`))
	if err != nil {
		t.Fatalf("POST /observe: %v", err)
	}
	resp.Body.Close()

	metricsResp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", metricsResp.StatusCode)
	}
	raw, err := io.ReadAll(metricsResp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "cyro_seen_lines 1") {
		t.Fatalf("expected cyro_seen_lines 1 in exposition, got:\n%s", body)
	}
}
