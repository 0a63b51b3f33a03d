// Package service exposes the scoring model over HTTP: observe and score
// endpoints for remote callers, plus stats and Prometheus metrics for
// operators. All handlers share one model behind a single exclusive lock;
// they are lightweight enough that coarse-grained locking stays invisible
// at realistic request rates.
package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/infomodel"
	"github.com/bimmerbailey/cyro/internal/metrics"
	"github.com/bimmerbailey/cyro/internal/parser"
)

// ObserveRequest is the body of POST /observe. Timestamp is accepted for
// forward compatibility but not currently used.
type ObserveRequest struct {
	Line      string `json:"line"`
	Level     string `json:"level,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ScoreRequest is the body of POST /score.
type ScoreRequest struct {
	Line  string `json:"line"`
	Level string `json:"level,omitempty"`
}

// ScoreResponse is the body returned by POST /score.
type ScoreResponse struct {
	Score        float64  `json:"score"`
	Novelty      float64  `json:"novelty"`
	TokenInfo    float64  `json:"token_info"`
	TemplateInfo float64  `json:"template_info"`
	LevelBonus   float64  `json:"level_bonus"`
	Template     string   `json:"template"`
	Tokens       []string `json:"tokens"`
}

// StatsResponse is the body returned by GET /stats.
type StatsResponse struct {
	Tokens         int     `json:"tokens"`
	Templates      int     `json:"templates"`
	TotalTokens    float64 `json:"total_tokens"`
	TotalTemplates float64 `json:"total_templates"`
	SeenLines      int     `json:"seen_lines"`
}

// Service wraps a model with HTTP handlers and a Prometheus registry.
type Service struct {
	mu       sync.Mutex
	model    *infomodel.Model
	registry *metrics.Registry
	promReg  *prometheus.Registry
}

// New builds a Service around model.
func New(model *infomodel.Model) *Service {
	promReg := prometheus.NewRegistry()
	return &Service{
		model:    model,
		registry: metrics.NewRegistry(promReg),
		promReg:  promReg,
	}
}

// Handler returns the routed HTTP handler for the whole service surface.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /observe", s.handleObserve)
	mux.HandleFunc("POST /score", s.handleScore)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", s.metricsHandler())
	return mux
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req ObserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	parsed := parser.ParseLine(req.Line)

	s.mu.Lock()
	s.model.Observe(parsed.Message)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "observed"})
}

func (s *Service) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	parsed := parser.ParseLine(req.Line)
	levelStr := req.Level
	if levelStr == "" {
		levelStr = parsed.Level
	}
	level := config.ParseLevel(levelStr)

	s.mu.Lock()
	template, tokens := s.model.Analyze(parsed.Message)
	result := s.model.Score(template, tokens, level)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, ScoreResponse{
		Score:        result.Score,
		Novelty:      result.Novelty,
		TokenInfo:    result.TokenInfoBits,
		TemplateInfo: result.TemplateInfoBits,
		LevelBonus:   result.LevelBonus,
		Template:     result.Template,
		Tokens:       result.Tokens,
	})
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	c := s.model.Counters()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatsResponse{
		Tokens:         c.Tokens,
		Templates:      c.Templates,
		TotalTokens:    c.TotalTokens,
		TotalTemplates: c.TotalTemplates,
		SeenLines:      c.SeenLines,
	})
}

// metricsHandler refreshes the gauges from the model's counters on every
// scrape, then delegates to the standard Prometheus exposition handler.
func (s *Service) metricsHandler() http.Handler {
	prom := promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		c := s.model.Counters()
		s.mu.Unlock()
		s.registry.Observe(c)
		prom.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
