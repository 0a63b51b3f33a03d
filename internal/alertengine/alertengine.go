// Package alertengine drives the per-line pipeline that turns a scored log
// line into an emitted alert: threshold comparison, template-based
// deduplication, and nearest-neighbor context, on top of an infomodel.Model.
package alertengine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/infomodel"
	"github.com/bimmerbailey/cyro/internal/logging"
	"github.com/bimmerbailey/cyro/internal/parser"
	"github.com/bimmerbailey/cyro/internal/quantile"
	"github.com/bimmerbailey/cyro/internal/sink"
)

// topContributors caps the token-contributor list on each alert unless the
// caller asked for all of them.
const topContributors = 10

// State is the engine's lifecycle stage.
type State int

const (
	// BurnIn collects samples to seed the quantile estimator(s) without
	// alerting. Skipped entirely when a manual threshold is configured.
	BurnIn State = iota
	// Armed compares each scored line against the current threshold and
	// may emit alerts.
	Armed
	// AlertingDisabled still observes and scores every line — vocabulary
	// and quantile estimates keep updating — but never emits an alert.
	// Entered only when the caller sets Options.Disabled; the engine never
	// enters it on its own.
	AlertingDisabled
)

func (s State) String() string {
	switch s {
	case BurnIn:
		return "burn_in"
	case Armed:
		return "armed"
	case AlertingDisabled:
		return "alerting_disabled"
	default:
		return "unknown"
	}
}

// TokenContributor mirrors infomodel.TokenContributor in the alert record's
// JSON shape (kept as a distinct type so the sink's wire format doesn't leak
// an internal package's type directly).
type TokenContributor = infomodel.TokenContributor

// Neighbor is one entry in an alert's nearest-neighbor context.
type Neighbor struct {
	Similarity float64 `json:"similarity"`
	Line       string  `json:"line"`
}

// Alert is the full record emitted for one anomalous line. Quantile is a
// pointer because it is null in the wire format when a manual threshold is
// configured. Threshold is a pointer to match its nullable wire field, but
// every emitted alert carries one: the manual value or the adaptive estimate.
type Alert struct {
	Timestamp           string             `json:"timestamp"`
	Level               string             `json:"level"`
	Novelty             float64            `json:"novelty"`
	Score               float64            `json:"score"`
	TokenInfoBits       float64            `json:"token_info_bits"`
	TemplateInfoBits    float64            `json:"template_info_bits"`
	LevelBonus          float64            `json:"level_bonus"`
	Template            string             `json:"template"`
	TemplateProbability float64            `json:"template_probability"`
	Tokens              []string           `json:"tokens"`
	TokenContributors   []TokenContributor `json:"token_contributors"`
	Line                string             `json:"line"`
	Threshold           *float64           `json:"threshold"`
	Quantile            *float64           `json:"quantile"`
	QuantileEstimates   map[string]float64 `json:"quantile_estimates"`
	Neighbors           []Neighbor         `json:"neighbors"`
}

type recentEntry struct {
	tokens []string
	raw    string
}

// Options configures an Engine beyond what TailConfig already carries.
type Options struct {
	AllTokenContributors bool
	Disabled             bool
}

// Engine runs the alerting pipeline over a shared infomodel.Model.
type Engine struct {
	model *infomodel.Model
	cfg   config.TailConfig
	opts  Options
	sink  sink.AlertSink

	state State

	// quantiles is sorted ascending; the highest (strictest) one is the
	// alerting threshold, the rest are tracked for diagnostics.
	quantiles []float64
	p2s       []*quantile.P2 // parallel to quantiles; empty in fixed-window mode
	window    []float64
	windowCap int

	lineIdx          int
	alertsEmitted    int
	templateLastSeen map[string]int
	recent           []recentEntry
	recentHead       int
}

// New builds an Engine. quantile/window/burnIn should already be resolved
// (config.ResolveTailSettings) before being placed on cfg.
func New(model *infomodel.Model, cfg config.TailConfig, opts Options, alertSink sink.AlertSink) *Engine {
	e := &Engine{
		model:            model,
		cfg:              cfg,
		opts:             opts,
		sink:             alertSink,
		templateLastSeen: make(map[string]int),
		windowCap:        cfg.Window,
	}

	qs := append([]float64(nil), cfg.Quantiles...)
	if len(qs) == 0 {
		qs = []float64{cfg.Quantile}
	}
	sort.Float64s(qs)
	e.quantiles = qs
	if !cfg.NoP2 {
		e.p2s = make([]*quantile.P2, len(qs))
		for i, q := range qs {
			e.p2s[i] = quantile.NewP2(q)
		}
	}

	switch {
	case opts.Disabled:
		e.state = AlertingDisabled
	case cfg.Threshold != nil:
		e.state = Armed
	default:
		e.state = BurnIn
	}

	return e
}

// State returns the engine's current lifecycle stage.
func (e *Engine) State() State { return e.state }

// LinesSeen returns the number of lines processed so far.
func (e *Engine) LinesSeen() int { return e.lineIdx }

// AlertsEmitted returns the number of alerts delivered to the sink so far.
func (e *Engine) AlertsEmitted() int { return e.alertsEmitted }

// TargetQuantile returns the quantile that backs the alerting threshold, or
// 0 when a manual threshold is configured.
func (e *Engine) TargetQuantile() float64 {
	if e.cfg.Threshold != nil {
		return 0
	}
	return e.quantiles[len(e.quantiles)-1]
}

// Process scores one raw log line, updates the model and quantile
// estimators, and — if the line clears the current threshold, isn't
// deduplicated by template, and the engine is Armed — emits an alert.
// It returns the alert if one was emitted, or nil otherwise. A sink failure
// is reported to stderr but never interrupts the stream.
func (e *Engine) Process(raw string) *Alert {
	parsed := parser.ParseLine(raw)
	level := config.ParseLevel(parsed.Level)

	template, tokens := e.model.Observe(parsed.Message)
	result := e.model.Score(template, tokens, level)

	e.lineIdx++

	var threshold *float64
	shouldAlert := false

	if e.cfg.Threshold != nil {
		t := *e.cfg.Threshold
		threshold = &t
		shouldAlert = result.Score >= t
	} else {
		// Estimators see every line's novelty, current line included, so
		// the threshold tracks the stream even while alerting is held off.
		for _, p2 := range e.p2s {
			p2.Update(result.Novelty)
		}
		e.window = append(e.window, result.Novelty)
		if e.windowCap > 0 && len(e.window) > e.windowCap {
			e.window = e.window[len(e.window)-e.windowCap:]
		}

		if e.adaptiveReady() {
			if e.state == BurnIn {
				e.state = Armed
			}
			v := e.thresholdValue()
			threshold = &v
			shouldAlert = result.Novelty >= v
		}
	}

	if e.state != Armed {
		shouldAlert = false
	}

	lastSeen, seenBefore := e.templateLastSeen[template]
	e.templateLastSeen[template] = e.lineIdx
	if shouldAlert && e.cfg.DedupeTemplate && seenBefore && e.lineIdx-lastSeen < e.cfg.Window {
		shouldAlert = false
	}

	var alert *Alert
	if shouldAlert {
		alert = e.buildAlert(parsed, level, result, threshold)
		alert.Neighbors = e.neighbors(tokens)
		e.alertsEmitted++
		if e.sink != nil {
			if err := e.sink.Emit(alert); err != nil {
				logging.Error("failed to write alert via sink", "error", err)
			}
		}
	}

	e.remember(tokens, raw)

	return alert
}

// adaptiveReady reports whether the burn-in gate has opened: enough lines
// seen, and enough samples behind the estimator for its value to mean
// anything.
func (e *Engine) adaptiveReady() bool {
	if e.lineIdx <= e.cfg.BurnIn {
		return false
	}
	if len(e.p2s) > 0 {
		return e.lineIdx >= 10
	}
	need := e.windowCap
	if need > 30 {
		need = 30
	}
	return len(e.window) >= need
}

// thresholdValue returns the alerting threshold: the estimate for the
// highest tracked quantile, from P² markers or the fixed window.
func (e *Engine) thresholdValue() float64 {
	if len(e.p2s) > 0 {
		return e.p2s[len(e.p2s)-1].Value()
	}
	return quantile.ComputeQuantile(e.window, e.quantiles[len(e.quantiles)-1])
}

// quantileEstimates reports every tracked quantile's current estimate, for
// alerts that carry intermediate diagnostics.
func (e *Engine) quantileEstimates() map[string]float64 {
	out := make(map[string]float64, len(e.quantiles))
	if len(e.p2s) > 0 {
		for i, q := range e.quantiles {
			out[quantileKey(q)] = e.p2s[i].Value()
		}
		return out
	}
	for _, q := range e.quantiles {
		out[quantileKey(q)] = quantile.ComputeQuantile(e.window, q)
	}
	return out
}

func quantileKey(q float64) string {
	return fmt.Sprintf("%.3f", q)
}

func (e *Engine) remember(tokens []string, raw string) {
	nnWindow := e.model.Config().NNWindow
	if nnWindow <= 0 {
		return
	}
	entry := recentEntry{tokens: tokens, raw: raw}
	if len(e.recent) < nnWindow {
		e.recent = append(e.recent, entry)
		return
	}
	e.recent[e.recentHead] = entry
	e.recentHead = (e.recentHead + 1) % nnWindow
}

func (e *Engine) neighbors(tokens []string) []Neighbor {
	topK := e.model.Config().NNTopK
	if topK <= 0 || len(e.recent) == 0 {
		return nil
	}
	set := tokenSet(tokens)

	type scored struct {
		sim   float64
		entry recentEntry
	}
	scoredAll := make([]scored, 0, len(e.recent))
	for _, entry := range e.recent {
		sim := jaccard(set, tokenSet(entry.tokens))
		scoredAll = append(scoredAll, scored{sim: sim, entry: entry})
	}

	// partial selection sort for the top K; recent windows are small enough
	// (nn_window, a few thousand at most) that this is fine without a heap.
	n := len(scoredAll)
	if topK > n {
		topK = n
	}
	for i := 0; i < topK; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scoredAll[j].sim > scoredAll[best].sim {
				best = j
			}
		}
		scoredAll[i], scoredAll[best] = scoredAll[best], scoredAll[i]
	}

	out := make([]Neighbor, 0, topK)
	for i := 0; i < topK; i++ {
		out = append(out, Neighbor{Similarity: scoredAll[i].sim, Line: strings.TrimSpace(scoredAll[i].entry.raw)})
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard is |a ∩ b| / max(1, |a ∪ b|), with the (0,0)-size special case
// defined as 0 rather than dividing zero by zero.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union < 1 {
		union = 1
	}
	return float64(inter) / float64(union)
}

func (e *Engine) buildAlert(parsed parser.Parsed, level config.Level, result infomodel.ScoreResult, threshold *float64) *Alert {
	contributors := e.model.TokenSurprisals(result.Tokens)
	if !e.opts.AllTokenContributors && len(contributors) > topContributors {
		contributors = contributors[:topContributors]
	}

	var estimates map[string]float64
	if e.cfg.EmitIntermediate && e.cfg.Threshold == nil && len(e.quantiles) > 1 {
		estimates = e.quantileEstimates()
	}

	var alertQuantile *float64
	if e.cfg.Threshold == nil {
		q := e.quantiles[len(e.quantiles)-1]
		alertQuantile = &q
	}

	levelStr := parsed.Level
	if levelStr == "" && level != config.LevelUnknown {
		levelStr = level.String()
	}

	return &Alert{
		Timestamp:           parsed.Timestamp,
		Level:               levelStr,
		Novelty:             result.Novelty,
		Score:               result.Score,
		TokenInfoBits:       result.TokenInfoBits,
		TemplateInfoBits:    result.TemplateInfoBits,
		LevelBonus:          result.LevelBonus,
		Template:            result.Template,
		TemplateProbability: result.TemplateProbability,
		Tokens:              result.Tokens,
		TokenContributors:   contributors,
		Line:                strings.TrimSpace(parsed.Message),
		Threshold:           threshold,
		Quantile:            alertQuantile,
		QuantileEstimates:   estimates,
	}
}

// GuardrailSummaryLine renders the exact "summary: ..." diagnostic line
// format, written verbatim to stderr by the caller — never through the
// structured logger, so its shape is stable for scripts that grep it.
func GuardrailSummaryLine(c infomodel.Counters) string {
	return fmt.Sprintf(
		"summary: truncated_lines=%d token_truncated_lines=%d dropped_lines=%d vocab_tokens=%d vocab_templates=%d",
		c.LinesTruncated, c.LinesTokenTruncated, c.LinesDropped, c.Tokens, c.Templates,
	)
}

// StatsLine renders the exact periodic "stats: ..." diagnostic line format.
// observed_rate is the fraction of processed lines that alerted, directly
// comparable to 1 - target_quantile.
func StatsLine(linesSeen, alertsEmitted int, targetQuantile float64) string {
	rate := 0.0
	if linesSeen > 0 {
		rate = float64(alertsEmitted) / float64(linesSeen)
	}
	return fmt.Sprintf(
		"stats: lines=%d alerts=%d observed_rate=%.4f target_quantile=%.4f",
		linesSeen, alertsEmitted, rate, targetQuantile,
	)
}
