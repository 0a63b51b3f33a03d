package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/bimmerbailey/cyro/internal/output"
	"github.com/bimmerbailey/cyro/internal/parser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var guardrailStatsCmd = &cobra.Command{
	Use:   "stats [flags] <file>",
	Short: "Prime the info model over a file and report guardrail/vocab counters",
	Long: `Prime the info model over a file the same way 'rank' and 'explain' do,
then report the resulting vocabulary size and guardrail counters: how many
lines were truncated for length, how many had their token list truncated,
how many were dropped outright, and the live token/template vocabulary
size.

Examples:
  cyro stats app.log
  cyro stats --format json app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runGuardrailStats,
}

func init() {
	addScoringFlags(guardrailStatsCmd)
	rootCmd.AddCommand(guardrailStatsCmd)
}

func runGuardrailStats(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	model := buildModel(cmd)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		parsed := parser.ParseLine(scanner.Text())
		model.Observe(parsed.Message)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	counters := model.Counters()
	format := output.ParseFormat(viper.GetString("format"))
	if format == output.FormatJSON {
		writer := output.New(cmd.OutOrStdout(), output.FormatJSON)
		if err := writer.WriteJSON(counters); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Lines seen:          %d\n", counters.SeenLines)
		fmt.Fprintf(cmd.OutOrStdout(), "Vocab tokens:        %d\n", counters.Tokens)
		fmt.Fprintf(cmd.OutOrStdout(), "Vocab templates:     %d\n", counters.Templates)
		fmt.Fprintf(cmd.OutOrStdout(), "Truncated lines:     %d\n", counters.LinesTruncated)
		fmt.Fprintf(cmd.OutOrStdout(), "Token-truncated lines: %d\n", counters.LinesTokenTruncated)
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped lines:       %d\n", counters.LinesDropped)
		fmt.Fprintf(cmd.OutOrStdout(), "Renormalizations:    %d\n", counters.Renormalizations)
		fmt.Fprintf(cmd.OutOrStdout(), "Decay scale (g):     %g\n", counters.G)
	}

	stateOut, _ := cmd.Flags().GetString("state-out")
	maybeSaveModel(model, stateOut)
	printGuardrailSummary(model)
	return nil
}
