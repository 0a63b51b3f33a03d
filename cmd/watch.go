package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bimmerbailey/cyro/internal/alertengine"
	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/infomodel"
	"github.com/bimmerbailey/cyro/internal/output"
	"github.com/bimmerbailey/cyro/internal/sink"
	"github.com/bimmerbailey/cyro/internal/tail"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <file>",
	Short: "Tail a log file and emit alerts for novel lines",
	Long: `Run the live anomaly-alerting pipeline: tail a file, score every new
line against the online info model, compare against an adaptive P² or
fixed-window quantile (or a manual threshold), and emit an alert record for
anything that clears it. This is the streaming counterpart to 'rank', which
does the same scoring over a static file in one batch.

Adaptive thresholds start at end-of-file so burn-in sees only fresh traffic;
a manual --threshold instead replays the file's existing content from the
start, since there's no burn-in window to protect.

Examples:
  cyro watch /var/log/app.log
  cyro watch --quantile 0.995 --window 2000 /var/log/app.log
  cyro watch --profile k8s --sink-file alerts.jsonl app.log
  cyro watch --threshold 6.0 --dedupe-template app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addScoringFlags(watchCmd)

	watchCmd.Flags().Float64("quantile", 0, "target quantile for the adaptive threshold (default 0.992)")
	watchCmd.Flags().Float64Slice("quantiles", nil, "multiple quantiles to track; the highest is used for alerting")
	watchCmd.Flags().Int("window", 0, "fixed-window size backing the fallback quantile estimator")
	watchCmd.Flags().Int("burn-in", 0, "lines to observe before alerting begins")
	watchCmd.Flags().Float64("threshold", 0, "manual score threshold; disables adaptive thresholding")
	watchCmd.Flags().String("profile", "", "named deployment profile (web, k8s, auth)")
	watchCmd.Flags().String("mode", "", "named alerting posture (triage, page)")
	watchCmd.Flags().Bool("no-p2", false, "use the fixed rolling window for quantiles instead of the P² estimator")
	watchCmd.Flags().Bool("dedupe-template", false, "suppress repeat alerts for the same template within --window lines")
	watchCmd.Flags().Bool("no-follow", false, "process existing content once and exit instead of following")
	watchCmd.Flags().Bool("emit-intermediate", false, "include every tracked quantile's estimate in each alert record")
	watchCmd.Flags().Bool("all-token-contributors", false, "include every token contributor in each alert, not just the top ones")
	watchCmd.Flags().Bool("json", false, "print alerts to stdout as JSON lines instead of the console form")
	watchCmd.Flags().Bool("no-color", false, "disable colored console output")
	watchCmd.Flags().String("sink-file", "", "additionally append alert records to this file as JSON lines")
	watchCmd.Flags().Duration("snapshot-interval", 0, "periodically write model state to --state-out at this interval")
	watchCmd.Flags().Duration("stats-interval", 0, "periodically print a stats line to stderr at this interval")
	watchCmd.Flags().Duration("poll-interval", 500*time.Millisecond, "how often to poll the file for new content")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	tailCfg := config.DefaultTailConfig()
	// Leave quantile/window/burn-in unset unless a flag sets them, so that
	// ResolveTailSettings can apply --profile and --mode presets.
	tailCfg.Quantile, tailCfg.Window, tailCfg.BurnIn = 0, 0, 0
	if v, _ := cmd.Flags().GetFloat64("quantile"); v != 0 {
		tailCfg.Quantile = v
	}
	tailCfg.Quantiles, _ = cmd.Flags().GetFloat64Slice("quantiles")
	if v, _ := cmd.Flags().GetInt("window"); v != 0 {
		tailCfg.Window = v
	}
	if cmd.Flags().Changed("burn-in") {
		tailCfg.BurnIn, _ = cmd.Flags().GetInt("burn-in")
	}
	tailCfg.Profile, _ = cmd.Flags().GetString("profile")
	tailCfg.Mode, _ = cmd.Flags().GetString("mode")
	tailCfg.NoP2, _ = cmd.Flags().GetBool("no-p2")
	tailCfg.DedupeTemplate, _ = cmd.Flags().GetBool("dedupe-template")
	noFollow, _ := cmd.Flags().GetBool("no-follow")
	tailCfg.Follow = !noFollow
	tailCfg.EmitIntermediate, _ = cmd.Flags().GetBool("emit-intermediate")
	allContributors, _ := cmd.Flags().GetBool("all-token-contributors")
	tailCfg.AllTokenContributors = allContributors
	tailCfg.SnapshotInterval, _ = cmd.Flags().GetDuration("snapshot-interval")
	tailCfg.StatsInterval, _ = cmd.Flags().GetDuration("stats-interval")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")

	if cmd.Flags().Changed("threshold") {
		v, _ := cmd.Flags().GetFloat64("threshold")
		tailCfg.Threshold = &v
	}

	quantile, window, burnIn := config.ResolveTailSettings(tailCfg)
	tailCfg.Quantile = quantile
	tailCfg.Window = window
	tailCfg.BurnIn = burnIn

	model := buildModel(cmd)

	alertSink, err := watchSink(cmd)
	if err != nil {
		return err
	}
	defer alertSink.Close()

	engine := alertengine.New(model, tailCfg, alertengine.Options{AllTokenContributors: allContributors}, alertSink)

	start := tail.StartAtEnd
	if tailCfg.Threshold != nil {
		start = tail.StartAtBeginning
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	// One exclusive lock serializes the hot path against the snapshot and
	// stats workers; the model itself carries no locking of its own.
	var mu sync.Mutex

	stateOut, _ := cmd.Flags().GetString("state-out")
	if tailCfg.SnapshotInterval > 0 && stateOut != "" {
		go runSnapshotWorker(ctx, &mu, model, stateOut, tailCfg.SnapshotInterval)
	}
	if tailCfg.StatsInterval > 0 {
		go runStatsWorker(ctx, &mu, engine, tailCfg.StatsInterval)
	}

	reader := tail.NewReader(tail.ReaderOptions{
		Path:         filePath,
		Start:        start,
		Follow:       tailCfg.Follow,
		PollInterval: pollInterval,
		LineHandler: func(line string) error {
			mu.Lock()
			engine.Process(line)
			mu.Unlock()
			return nil
		},
	})

	runErr := reader.Run(ctx)

	mu.Lock()
	if tailCfg.StatsInterval > 0 {
		fmt.Fprintln(os.Stderr, alertengine.StatsLine(engine.LinesSeen(), engine.AlertsEmitted(), engine.TargetQuantile()))
	}
	maybeSaveModel(model, stateOut)
	printGuardrailSummary(model)
	mu.Unlock()

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", runErr)
	}
	return nil
}

// watchSink composes the alert destinations: stdout always gets every alert,
// rendered in the multi-line console form (or as JSON lines with --json),
// and --sink-file additionally appends the JSON record to a file. Multiple
// destinations fan out through MultiSink so a file error never silences the
// console.
func watchSink(cmd *cobra.Command) (sink.AlertSink, error) {
	var sinks []sink.AlertSink

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		sinks = append(sinks, jsonLineSink{enc: json.NewEncoder(cmd.OutOrStdout())})
	} else {
		mode := output.ColorAuto
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			mode = output.ColorNever
		}
		sinks = append(sinks, consoleSink{
			w:        cmd.OutOrStdout(),
			colorize: output.ShouldColorize(mode, os.Stdout),
		})
	}

	if path, _ := cmd.Flags().GetString("sink-file"); path != "" {
		fileSink, err := sink.NewJSONLSink(path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sink.NewMultiSink(sinks...), nil
}

// consoleSink renders alerts for humans.
type consoleSink struct {
	w        io.Writer
	colorize bool
}

func (s consoleSink) Emit(record any) error {
	if a, ok := record.(*alertengine.Alert); ok {
		return output.RenderAlert(s.w, a, s.colorize)
	}
	return json.NewEncoder(s.w).Encode(record)
}
func (s consoleSink) Close() error { return nil }

// jsonLineSink prints each alert as one JSON line, the same wire shape a
// file sink would produce.
type jsonLineSink struct {
	enc *json.Encoder
}

func (s jsonLineSink) Emit(record any) error { return s.enc.Encode(record) }
func (s jsonLineSink) Close() error          { return nil }

// runSnapshotWorker periodically persists the model's state so a restart
// can pick up where this run left off. It is abandoned (not joined) on
// shutdown: the final save in runWatch after the tail loop exits is what
// matters for correctness.
func runSnapshotWorker(ctx context.Context, mu *sync.Mutex, model *infomodel.Model, path string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			maybeSaveModel(model, path)
			mu.Unlock()
		}
	}
}

// runStatsWorker prints the periodic "stats: ..." diagnostic line at the
// configured interval.
func runStatsWorker(ctx context.Context, mu *sync.Mutex, engine *alertengine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			line := alertengine.StatsLine(engine.LinesSeen(), engine.AlertsEmitted(), engine.TargetQuantile())
			mu.Unlock()
			fmt.Fprintln(os.Stderr, line)
		}
	}
}
