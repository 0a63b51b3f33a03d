// Package infomodel is the online, unsupervised frequency model that scores
// how surprising a log line is. It tracks Laplace-smoothed token and
// template frequencies with lazy exponential decay, so recent behavior
// outweighs old behavior without ever rescanning the whole vocabulary.
package infomodel

import (
	"fmt"
	"math"
	"sort"

	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/templater"
	"github.com/bimmerbailey/cyro/internal/tokenizer"
)

const probFloor = 1e-12

// SnapshotVersion is the schema tag stamped into every persisted snapshot.
const SnapshotVersion = 3

// Model is the online info-theoretic frequency model. The zero value is not
// usable; construct with New.
type Model struct {
	cfg config.ScoringConfig
	tpl *templater.Templater

	tokenCounts    map[string]float64
	templateCounts map[string]float64
	tokenTotal     float64
	templateTotal  float64

	g             float64
	seenLines     int
	lastDecayLine int

	renormalizations    int
	linesTruncated      int
	linesTokenTruncated int
	// linesDropped is reserved for a whole-line drop policy that has never
	// been enabled; it is reported and persisted but stays zero.
	linesDropped int
}

// New constructs a Model from cfg, using tpl to reduce lines to templates.
// If tpl is nil, a fresh Templater with no custom masks is used.
func New(cfg config.ScoringConfig, tpl *templater.Templater) *Model {
	if tpl == nil {
		tpl = templater.New()
	}
	return &Model{
		cfg:            cfg,
		tpl:            tpl,
		tokenCounts:    make(map[string]float64),
		templateCounts: make(map[string]float64),
		g:              1.0,
	}
}

func (m *Model) tokenizeOpts() tokenizer.Options {
	return tokenizer.Options{
		IncludeBigrams: m.cfg.IncludeBigrams,
		SplitCamel:     m.cfg.SplitCamel,
		SplitDot:       m.cfg.SplitDot,
		MaxPerLine:     m.cfg.MaxTokensPerLine,
	}
}

// Analyze computes a line's template and tokens the same way Observe does,
// without mutating the vocabulary or guardrail counters. Used to score a
// single line against an already-primed model (explain) without that line
// itself skewing subsequent frequencies.
func (m *Model) Analyze(line string) (template string, tokens []string) {
	if m.cfg.MaxLineLength > 0 && len(line) > m.cfg.MaxLineLength {
		line = line[:m.cfg.MaxLineLength]
	}
	template = m.tpl.ToTemplate(line)
	tokens, _ = tokenizer.Tokenize(line, m.tokenizeOpts())
	return template, tokens
}

// Observe folds one log line into the model's vocabulary. It returns the
// line's template and tokens, which callers scoring the same line can reuse
// instead of recomputing them.
func (m *Model) Observe(line string) (template string, tokens []string) {
	if m.cfg.MaxLineLength > 0 && len(line) > m.cfg.MaxLineLength {
		line = line[:m.cfg.MaxLineLength]
		m.linesTruncated++
	}

	template = m.tpl.ToTemplate(line)
	toks, truncated := tokenizer.Tokenize(line, m.tokenizeOpts())
	if truncated {
		m.linesTokenTruncated++
	}
	tokens = toks

	m.seenLines++

	if len(tokens) == 0 {
		m.decayMaybe()
		return template, tokens
	}

	inc := 1.0 / m.g
	for _, tok := range tokens {
		m.tokenCounts[tok] += inc
		m.tokenTotal += inc
	}
	m.templateCounts[template] += inc
	m.templateTotal += inc

	m.pruneTokens()
	m.pruneTemplates()
	m.decayMaybe()

	return template, tokens
}

// decayMaybe applies the batched exponential decay and, if the scale factor
// has underflowed renorm_min_scale, folds it back into the stored counts so
// float64 precision never collapses to zero.
func (m *Model) decayMaybe() {
	every := m.cfg.DecayEvery
	if every <= 0 {
		every = 1
	}
	steps := (m.seenLines - m.lastDecayLine) / every
	if steps <= 0 {
		return
	}
	m.lastDecayLine += steps * every
	m.g *= math.Pow(m.cfg.Decay, float64(steps))

	if m.g > 0 && m.g < m.cfg.RenormMinScale {
		m.renormalize()
	}
}

func (m *Model) renormalize() {
	g := m.g
	for k, v := range m.tokenCounts {
		m.tokenCounts[k] = v * g
	}
	for k, v := range m.templateCounts {
		m.templateCounts[k] = v * g
	}
	m.tokenTotal *= g
	m.templateTotal *= g
	m.g = 1.0
	m.renormalizations++
}

func (m *Model) pruneTokens() {
	for m.cfg.MaxTokens > 0 && len(m.tokenCounts) > m.cfg.MaxTokens {
		k, v := minCount(m.tokenCounts)
		delete(m.tokenCounts, k)
		m.tokenTotal -= v
		if m.tokenTotal < 0 {
			m.tokenTotal = 0
		}
	}
}

func (m *Model) pruneTemplates() {
	for m.cfg.MaxTemplates > 0 && len(m.templateCounts) > m.cfg.MaxTemplates {
		k, v := minCount(m.templateCounts)
		delete(m.templateCounts, k)
		m.templateTotal -= v
		if m.templateTotal < 0 {
			m.templateTotal = 0
		}
	}
}

func minCount(counts map[string]float64) (string, float64) {
	var minKey string
	minVal := math.Inf(1)
	first := true
	for k, v := range counts {
		if first || v < minVal {
			minKey, minVal, first = k, v, false
		}
	}
	return minKey, minVal
}

// prob returns the Laplace-smoothed probability of one observation of count
// against total observations over a vocabulary of size vocab.
func (m *Model) prob(count, total float64, vocab int) float64 {
	alpha := m.cfg.Alpha
	denom := total*m.g + alpha*math.Max(1, float64(vocab))
	if denom <= 0 {
		return probFloor
	}
	p := (count*m.g + alpha) / denom
	if p < probFloor {
		return probFloor
	}
	return p
}

func selfInfo(p float64) float64 {
	if p < probFloor {
		p = probFloor
	}
	return -math.Log2(p)
}

// TokenProbability returns the current smoothed probability of tok, whether
// or not it has ever been observed.
func (m *Model) TokenProbability(tok string) float64 {
	return m.prob(m.tokenCounts[tok], m.tokenTotal, len(m.tokenCounts))
}

// TemplateProbability returns the current smoothed probability of tpl.
func (m *Model) TemplateProbability(tpl string) float64 {
	return m.prob(m.templateCounts[tpl], m.templateTotal, len(m.templateCounts))
}

// TokenContributor is the per-token surprisal breakdown used by explain/rank
// output.
type TokenContributor struct {
	Token string  `json:"token"`
	Prob  float64 `json:"prob"`
	Bits  float64 `json:"bits"`
	Freq  float64 `json:"freq"`
}

// TokenSurprisals returns the surprisal of each (deduplicated) token in
// toks, sorted by descending bits and then lexically by token. Freq is the
// number of times the token occurs in toks.
func (m *Model) TokenSurprisals(toks []string) []TokenContributor {
	inLine := make(map[string]float64, len(toks))
	for _, tok := range toks {
		inLine[tok]++
	}
	seen := make(map[string]bool, len(toks))
	out := make([]TokenContributor, 0, len(toks))
	for _, tok := range toks {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		p := m.TokenProbability(tok)
		out = append(out, TokenContributor{
			Token: tok,
			Prob:  p,
			Bits:  selfInfo(p),
			Freq:  inLine[tok],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bits != out[j].Bits {
			return out[i].Bits > out[j].Bits
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// ScoreResult is the breakdown produced for a single scored line.
type ScoreResult struct {
	Template            string
	Tokens              []string
	TokenInfoBits       float64
	TemplateInfoBits    float64
	TemplateProbability float64
	LevelBonus          float64
	Novelty             float64
	Score               float64
}

// Score evaluates line (already known to correspond to template/tokens, as
// returned by Observe) against the model's current vocabulary, without
// mutating any counts. level selects the fixed severity bonus; unrecognized
// levels score zero bonus.
func (m *Model) Score(template string, tokens []string, level config.Level) ScoreResult {
	var tokenInfoSum float64
	for _, tok := range tokens {
		tokenInfoSum += selfInfo(m.TokenProbability(tok))
	}
	tokenInfo := 0.0
	if len(tokens) > 0 {
		tokenInfo = tokenInfoSum / float64(len(tokens))
	}

	tplProb := m.TemplateProbability(template)
	templateInfo := selfInfo(tplProb)
	levelBonus := config.LevelBonus[level]

	novelty := 1 - math.Exp(-tokenInfo)

	score := m.cfg.WToken*tokenInfo + m.cfg.WTemplate*templateInfo + m.cfg.WLevel*levelBonus

	return ScoreResult{
		Template:            template,
		Tokens:              tokens,
		TokenInfoBits:       tokenInfo,
		TemplateInfoBits:    templateInfo,
		TemplateProbability: tplProb,
		LevelBonus:          levelBonus,
		Novelty:             novelty,
		Score:               score,
	}
}

// Counters is a read-only snapshot of the model's guardrail and vocabulary
// counters.
type Counters struct {
	Tokens              int     `json:"tokens"`
	Templates           int     `json:"templates"`
	TotalTokens         float64 `json:"total_tokens"`
	TotalTemplates      float64 `json:"total_templates"`
	SeenLines           int     `json:"seen_lines"`
	G                   float64 `json:"g"`
	Renormalizations    int     `json:"renormalizations"`
	LinesTruncated      int     `json:"lines_truncated"`
	LinesTokenTruncated int     `json:"lines_token_truncated"`
	LinesDropped        int     `json:"lines_dropped"`
}

// Counters returns the model's current guardrail and vocabulary counters.
func (m *Model) Counters() Counters {
	return Counters{
		Tokens:              len(m.tokenCounts),
		Templates:           len(m.templateCounts),
		TotalTokens:         m.tokenTotal,
		TotalTemplates:      m.templateTotal,
		SeenLines:           m.seenLines,
		G:                   m.g,
		Renormalizations:    m.renormalizations,
		LinesTruncated:      m.linesTruncated,
		LinesTokenTruncated: m.linesTokenTruncated,
		LinesDropped:        m.linesDropped,
	}
}

// Config returns a copy of the scoring configuration the model was built
// with.
func (m *Model) Config() config.ScoringConfig { return m.cfg }

// Templater returns the templater instance this model reduces lines with,
// so callers can install custom masks before the first Observe.
func (m *Model) Templater() *templater.Templater { return m.tpl }

// Snapshot is the versioned, JSON-serializable representation of a Model's
// full state.
type Snapshot struct {
	Version             int                  `json:"version"`
	Config              config.ScoringConfig `json:"config"`
	TokenCounts         map[string]float64   `json:"token_counts"`
	TemplateCounts      map[string]float64   `json:"template_counts"`
	TokenTotal          float64              `json:"token_total"`
	TemplateTotal       float64              `json:"template_total"`
	SeenLines           int                  `json:"seen_lines"`
	G                   float64              `json:"g"`
	LastDecayLine       int                  `json:"last_decay_line"`
	Renormalizations    int                  `json:"renormalizations"`
	LinesTruncated      int                  `json:"lines_truncated"`
	LinesTokenTruncated int                  `json:"lines_token_truncated"`
	LinesDropped        int                  `json:"lines_dropped"`
}

// Snapshot captures the model's full state for persistence.
func (m *Model) Snapshot() Snapshot {
	tc := make(map[string]float64, len(m.tokenCounts))
	for k, v := range m.tokenCounts {
		tc[k] = v
	}
	pc := make(map[string]float64, len(m.templateCounts))
	for k, v := range m.templateCounts {
		pc[k] = v
	}
	return Snapshot{
		Version:             SnapshotVersion,
		Config:              m.cfg,
		TokenCounts:         tc,
		TemplateCounts:      pc,
		TokenTotal:          m.tokenTotal,
		TemplateTotal:       m.templateTotal,
		SeenLines:           m.seenLines,
		G:                   m.g,
		LastDecayLine:       m.lastDecayLine,
		Renormalizations:    m.renormalizations,
		LinesTruncated:      m.linesTruncated,
		LinesTokenTruncated: m.linesTokenTruncated,
		LinesDropped:        m.linesDropped,
	}
}

// Restore rebuilds a Model from a snapshot. If cfgOverride is non-nil, its
// fields replace the persisted configuration entirely (the snapshot's
// counts are kept, but future behavior follows the override) — this is the
// "restart with different tuning, same learned vocabulary" path.
func Restore(snap Snapshot, tpl *templater.Templater, cfgOverride *config.ScoringConfig) (*Model, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("infomodel: unsupported snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}
	cfg := snap.Config
	if cfgOverride != nil {
		cfg = *cfgOverride
	}
	m := New(cfg, tpl)
	m.tokenCounts = make(map[string]float64, len(snap.TokenCounts))
	for k, v := range snap.TokenCounts {
		m.tokenCounts[k] = v
	}
	m.templateCounts = make(map[string]float64, len(snap.TemplateCounts))
	for k, v := range snap.TemplateCounts {
		m.templateCounts[k] = v
	}
	m.tokenTotal = snap.TokenTotal
	m.templateTotal = snap.TemplateTotal
	m.seenLines = snap.SeenLines
	m.g = snap.G
	if m.g <= 0 {
		m.g = 1.0
	}
	m.lastDecayLine = snap.LastDecayLine
	m.renormalizations = snap.Renormalizations
	m.linesTruncated = snap.LinesTruncated
	m.linesTokenTruncated = snap.LinesTokenTruncated
	m.linesDropped = snap.LinesDropped
	return m, nil
}
