// Package config provides configuration types and defaults for the
// scoring model, the tail/alerting pipeline, and named profiles/modes.
package config

import "time"

// ScoringConfig controls the Info model's smoothing, decay, weighting and
// guardrail behavior. Zero value is not meaningful; use DefaultScoringConfig.
type ScoringConfig struct {
	Alpha      float64 `mapstructure:"alpha"`
	WToken     float64 `mapstructure:"w_token"`
	WTemplate  float64 `mapstructure:"w_template"`
	WLevel     float64 `mapstructure:"w_level"`
	Decay      float64 `mapstructure:"decay"`
	DecayEvery int     `mapstructure:"decay_every"`

	NNWindow int `mapstructure:"nn_window"`
	NNTopK   int `mapstructure:"nn_topk"`

	MaxTokens        int `mapstructure:"max_tokens"`
	MaxTemplates     int `mapstructure:"max_templates"`
	MaxLineLength    int `mapstructure:"max_line_length"`
	MaxTokensPerLine int `mapstructure:"max_tokens_per_line"`

	IncludeBigrams bool `mapstructure:"include_bigrams"`
	SplitCamel     bool `mapstructure:"split_camel"`
	SplitDot       bool `mapstructure:"split_dot"`

	RenormMinScale float64 `mapstructure:"renorm_min_scale"`
}

// DefaultScoringConfig returns the scoring defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Alpha:            1.0,
		WToken:           1.0,
		WTemplate:        1.0,
		WLevel:           0.25,
		Decay:            0.9999,
		DecayEvery:       1,
		NNWindow:         5000,
		NNTopK:           2,
		MaxTokens:        30000,
		MaxTemplates:     10000,
		MaxLineLength:    2000,
		MaxTokensPerLine: 400,
		IncludeBigrams:   false,
		SplitCamel:       false,
		SplitDot:         false,
		RenormMinScale:   1e-9,
	}
}

// TailConfig controls the alert engine's thresholding and lifecycle behavior.
type TailConfig struct {
	Quantile             float64       `mapstructure:"quantile"`
	Quantiles            []float64     `mapstructure:"quantiles"`
	Window               int           `mapstructure:"window"`
	BurnIn               int           `mapstructure:"burn_in"`
	Threshold            *float64      `mapstructure:"threshold"`
	NoP2                 bool          `mapstructure:"no_p2"`
	DedupeTemplate       bool          `mapstructure:"dedupe_template"`
	SnapshotInterval     time.Duration `mapstructure:"snapshot_interval"`
	StatsInterval        time.Duration `mapstructure:"stats_interval"`
	Follow               bool          `mapstructure:"follow"`
	EmitIntermediate     bool          `mapstructure:"emit_intermediate"`
	AllTokenContributors bool          `mapstructure:"all_token_contributors"`
	Profile              string        `mapstructure:"profile"`
	Mode                 string        `mapstructure:"mode"`
}

// DefaultTailConfig returns the tail/alerting defaults.
func DefaultTailConfig() TailConfig {
	return TailConfig{
		Quantile: 0.992,
		Window:   1000,
		BurnIn:   500,
		Follow:   true,
	}
}

// MinWindow is the smallest fixed-window size accepted after clamping.
const MinWindow = 10

// TailProfile bundles the three settings a named profile overrides.
type TailProfile struct {
	Quantile float64
	Window   int
	BurnIn   int
}

// TailProfiles maps short deployment-shape names to tuned settings.
var TailProfiles = map[string]TailProfile{
	"web":  {Quantile: 0.992, Window: 1200, BurnIn: 400},
	"k8s":  {Quantile: 0.995, Window: 900, BurnIn: 350},
	"auth": {Quantile: 0.994, Window: 1100, BurnIn: 500},
}

// ModePresets maps named alerting postures to a target quantile.
var ModePresets = map[string]float64{
	"triage": 0.992,
	"page":   0.995,
}

// ResolveTailSettings applies profile then mode then explicit overrides to
// produce the effective (quantile, window, burn_in) triple, clamped to sane
// ranges.
func ResolveTailSettings(cfg TailConfig) (quantile float64, window int, burnIn int) {
	quantile, window, burnIn = 0.992, 1000, 500
	if p, ok := TailProfiles[cfg.Profile]; ok {
		quantile, window, burnIn = p.Quantile, p.Window, p.BurnIn
	}
	if q, ok := ModePresets[cfg.Mode]; ok {
		quantile = q
	}
	if cfg.Quantile != 0 {
		quantile = cfg.Quantile
	}
	if cfg.Window != 0 {
		window = cfg.Window
	}
	if cfg.BurnIn != 0 {
		burnIn = cfg.BurnIn
	}

	if quantile < 0.5 {
		quantile = 0.5
	}
	if quantile > 0.9995 {
		quantile = 0.9995
	}
	if window < MinWindow {
		window = MinWindow
	}
	if burnIn < 0 {
		burnIn = 0
	}
	return quantile, window, burnIn
}
