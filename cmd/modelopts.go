package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bimmerbailey/cyro/internal/alertengine"
	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/infomodel"
	"github.com/bimmerbailey/cyro/internal/logging"
	"github.com/bimmerbailey/cyro/internal/persistence"
	"github.com/bimmerbailey/cyro/internal/preprocess"
	"github.com/bimmerbailey/cyro/internal/templater"
	"github.com/spf13/cobra"
)

// addScoringFlags registers the info-model tuning flags shared by explain,
// rank, serve, stats, and watch.
func addScoringFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("with-bigrams", false, "include token bigrams while scoring")
	cmd.Flags().Bool("split-camel", false, "split mixedCase/PascalCase tokens into parts")
	cmd.Flags().Bool("split-dot", false, "split dotted.identifiers into parts")
	cmd.Flags().Float64("w-token", 0, "override weight for token surprisal component")
	cmd.Flags().Float64("w-template", 0, "override weight for template surprisal component")
	cmd.Flags().Float64("w-level", 0, "override weight for level bonus component")
	cmd.Flags().Float64("decay", 0, "per-line decay multiplier (e.g. 0.9999)")
	cmd.Flags().Int("decay-every", 0, "apply decay multiplier every N lines")
	cmd.Flags().StringSlice("mask", nil, "custom regex=replacement mask (repeatable)")
	cmd.Flags().String("mask-order", "before", "apply custom masks before or after built-ins")
	cmd.Flags().StringSlice("sensitive-masks", nil, "named sensitive-data patterns to mask ahead of the built-ins (e.g. jwt, api_key, credit_card; 'default' selects the recommended set)")
	cmd.Flags().String("state-in", "", "load model state from this file before running (.db/.bolt selects the embedded store)")
	cmd.Flags().String("state-out", "", "persist the updated model state to this file (.db/.bolt selects the embedded store)")
}

// scoringConfigFromFlags builds a ScoringConfig from the flags registered by
// addScoringFlags, starting from config.DefaultScoringConfig.
func scoringConfigFromFlags(cmd *cobra.Command) config.ScoringConfig {
	cfg := config.DefaultScoringConfig()

	cfg.IncludeBigrams, _ = cmd.Flags().GetBool("with-bigrams")
	cfg.SplitCamel, _ = cmd.Flags().GetBool("split-camel")
	cfg.SplitDot, _ = cmd.Flags().GetBool("split-dot")

	if cmd.Flags().Changed("decay") {
		cfg.Decay, _ = cmd.Flags().GetFloat64("decay")
	}
	if cmd.Flags().Changed("decay-every") {
		cfg.DecayEvery, _ = cmd.Flags().GetInt("decay-every")
	}
	if cmd.Flags().Changed("w-token") {
		cfg.WToken, _ = cmd.Flags().GetFloat64("w-token")
	}
	if cmd.Flags().Changed("w-template") {
		cfg.WTemplate, _ = cmd.Flags().GetFloat64("w-template")
	}
	if cmd.Flags().Changed("w-level") {
		cfg.WLevel, _ = cmd.Flags().GetFloat64("w-level")
	}
	return cfg
}

// templaterFromFlags builds a Templater with any --mask specs compiled and
// installed in the configured order, plus any --sensitive-masks presets.
// Malformed masks are reported and skipped, matching
// templater.CompileCustomMasks. Sensitive-data presets always run before the
// built-ins so a secret never survives long enough for a generic mask to
// chop it into recognizable pieces.
func templaterFromFlags(cmd *cobra.Command) *templater.Templater {
	tpl := templater.New()

	var before, after []templater.Mask

	if names, _ := cmd.Flags().GetStringSlice("sensitive-masks"); len(names) > 0 {
		if len(names) == 1 && names[0] == "default" {
			names = preprocess.DefaultPatterns()
		}
		before = append(before, preprocess.ToTemplaterMasks(names)...)
	}

	if specs, _ := cmd.Flags().GetStringSlice("mask"); len(specs) > 0 {
		order, _ := cmd.Flags().GetString("mask-order")
		masks := templater.CompileCustomMasks(specs)
		if order == "after" {
			after = append(after, masks...)
		} else {
			before = append(before, masks...)
		}
	}

	if len(before) > 0 || len(after) > 0 {
		tpl.SetCustomMasks(before, after)
	}
	return tpl
}

// buildModel assembles an info model from the shared scoring flags, loading
// a persisted snapshot from --state-in when given. A missing or unreadable
// state file is reported to stderr and a fresh model is returned instead of
// aborting the command.
func buildModel(cmd *cobra.Command) *infomodel.Model {
	cfg := scoringConfigFromFlags(cmd)
	tpl := templaterFromFlags(cmd)

	stateIn, _ := cmd.Flags().GetString("state-in")
	if stateIn == "" {
		return infomodel.New(cfg, tpl)
	}

	store, err := openStateStore(stateIn)
	if err != nil {
		logging.Warn("failed to open state store; starting fresh", "path", stateIn, "error", err)
		return infomodel.New(cfg, tpl)
	}
	defer store.Close()
	snap, _, err := store.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn("state file not found; starting fresh", "path", stateIn)
		} else {
			logging.Warn("failed to load state; starting fresh", "path", stateIn, "error", err)
		}
		return infomodel.New(cfg, tpl)
	}
	model, err := infomodel.Restore(snap, tpl, &cfg)
	if err != nil {
		logging.Warn("failed to restore state; starting fresh", "path", stateIn, "error", err)
		return infomodel.New(cfg, tpl)
	}
	return model
}

// openStateStore picks a persistence backend by extension: .db and .bolt
// select the embedded key-value store, anything else the atomic JSON file.
func openStateStore(path string) (persistence.Store, error) {
	switch filepath.Ext(path) {
	case ".db", ".bolt":
		return persistence.NewBoltStore(path)
	default:
		return persistence.NewJSONFileStore(path), nil
	}
}

// maybeSaveModel writes the model's snapshot to path if path is non-empty.
func maybeSaveModel(model *infomodel.Model, path string) {
	if path == "" {
		return
	}
	store, err := openStateStore(path)
	if err != nil {
		logging.Error("failed to open state store", "path", path, "error", err)
		return
	}
	defer store.Close()
	if err := store.Save(model.Snapshot(), persistence.NewRunID()); err != nil {
		logging.Error("failed to write state snapshot", "path", path, "error", err)
		return
	}
	fmt.Printf("Wrote state snapshot to %s\n", path)
}

// printGuardrailSummary writes the exact "summary: ..." diagnostic line to
// stderr on the way out of a command, unconditionally — callers that only
// want it when a guardrail actually tripped should check model.Counters()
// themselves first.
func printGuardrailSummary(model *infomodel.Model) {
	fmt.Fprintln(os.Stderr, alertengine.GuardrailSummaryLine(model.Counters()))
}
