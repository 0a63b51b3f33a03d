package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/output"
	"github.com/bimmerbailey/cyro/internal/parser"
	"github.com/bimmerbailey/cyro/internal/preprocess"
	"github.com/bimmerbailey/cyro/internal/tail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tailCmd = &cobra.Command{
	Use:   "tail [flags] <file>",
	Short: "Live-tail a log file with filtering and colorized levels",
	Long: `Watch a log file in real-time, similar to 'tail -f' but with
built-in filtering by log level, pattern matching, severity-colored output,
and optional redaction of sensitive values. Rotation and truncation of the
watched file are followed transparently.

This is a plain viewing command: nothing here feeds the scoring model. For
the alerting pipeline over the same reader, see 'cyro watch'.

Examples:
  cyro tail /var/log/app.log
  cyro tail --level error /var/log/app.log
  cyro tail --pattern "request_id=abc" --level warn app.log
  cyro tail --redact --lines 50 app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringP("pattern", "p", "", "only show lines matching regex pattern")
	tailCmd.Flags().StringP("level", "l", "", "minimum log level to display (debug, info, warn, error, critical)")
	tailCmd.Flags().IntP("lines", "n", 10, "number of existing lines to show before following")
	tailCmd.Flags().Bool("no-follow", false, "print the last N lines and exit (don't follow)")
	tailCmd.Flags().Bool("no-color", false, "disable colored output")
	tailCmd.Flags().Bool("redact", false, "mask sensitive values (emails, keys, tokens) in displayed lines")
	tailCmd.Flags().Duration("poll-interval", 500*time.Millisecond, "how often to poll the file for new content")

	rootCmd.AddCommand(tailCmd)
}

// tailFilter is the per-line display predicate shared by the backlog pass
// and the live follow loop.
type tailFilter struct {
	pattern     *regexp.Regexp
	level       config.Level
	levelActive bool
}

// matches reports whether entry should be displayed. Entries whose level
// could not be classified always pass the level filter.
func (f tailFilter) matches(entry config.LogEntry) bool {
	if f.levelActive && entry.Level != config.LevelUnknown {
		if !entry.Level.AtLeastAsSevereAs(f.level) {
			return false
		}
	}
	if f.pattern != nil && !f.pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

func runTail(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	levelStr, _ := cmd.Flags().GetString("level")
	lines, _ := cmd.Flags().GetInt("lines")
	noFollow, _ := cmd.Flags().GetBool("no-follow")
	noColor, _ := cmd.Flags().GetBool("no-color")
	redact, _ := cmd.Flags().GetBool("redact")
	patternStr, _ := cmd.Flags().GetString("pattern")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	filter := tailFilter{level: config.LevelUnknown}
	if patternStr != "" {
		re, err := regexp.Compile(patternStr)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		filter.pattern = re
	}
	if levelStr != "" {
		filter.level = config.ParseLevel(levelStr)
		if filter.level == config.LevelUnknown {
			return fmt.Errorf("invalid level: %s", levelStr)
		}
		filter.levelActive = true
	}

	colorMode := output.ColorAuto
	if noColor {
		colorMode = output.ColorNever
	}
	colorize := output.ShouldColorize(colorMode, os.Stdout)

	p := parser.New(viper.GetStringSlice("timestamp_formats"))
	redactor := preprocess.NewRedactor(redact, preprocess.DefaultPatterns())

	lineNum := 0
	display := func(raw string) error {
		lineNum++
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		entry := p.ParseEntry(raw, lineNum)
		if !filter.matches(entry) {
			return nil
		}
		text := entry.Raw
		if redactor.IsEnabled() {
			text = redactor.Redact(text)
		}
		if colorize {
			text = output.ColorizeLine(entry.Level, text)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	}

	// Backlog pass: show the last N matching lines before attaching.
	if lines > 0 {
		if err := showBacklog(filePath, lines, display); err != nil {
			return err
		}
	}
	if noFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := tail.NewReader(tail.ReaderOptions{
		Path:         filePath,
		Start:        tail.StartAtEnd,
		Follow:       true,
		PollInterval: pollInterval,
		LineHandler:  display,
	})
	if err := reader.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tail: %w", err)
	}
	return nil
}

// showBacklog runs display over the last n lines currently in the file.
func showBacklog(path string, n int, display func(string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	keep := make([]string, 0, n)
	for scanner.Scan() {
		keep = append(keep, scanner.Text())
		if len(keep) > n {
			keep = keep[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, raw := range keep {
		if err := display(raw); err != nil {
			return err
		}
	}
	return nil
}
