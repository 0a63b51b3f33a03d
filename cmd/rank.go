package cmd

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/infomodel"
	"github.com/bimmerbailey/cyro/internal/parser"
	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank [flags] <file>",
	Short: "Score every line of a file and rank by novelty",
	Long: `Run the same scoring pipeline used by 'watch', but over a static file
in one batch: observe every line in order, then sort by novelty descending
and print the rarest lines. A one-shot triage tool for "what's the weirdest
thing in this file" rather than a live stream.

Examples:
  cyro rank app.log
  cyro rank --top 25 app.log
  cyro rank --csv ranked.csv app.log
  cyro rank --json ranked.json --all-token-contributors app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	addScoringFlags(rankCmd)
	rankCmd.Flags().Int("top", 50, "number of highest-novelty lines to report (0 = all)")
	rankCmd.Flags().String("csv", "", "write ranked results to this CSV file")
	rankCmd.Flags().String("json", "", "write ranked results to this JSON file")
	rankCmd.Flags().Bool("all-token-contributors", false, "include every token contributor in JSON output, not just the top 10")

	rootCmd.AddCommand(rankCmd)
}

type rankedLine struct {
	LineNo              int                          `json:"line_no"`
	Novelty             float64                      `json:"novelty"`
	Score               float64                      `json:"score"`
	TokenInfoBits       float64                      `json:"token_info_bits"`
	TemplateInfoBits    float64                      `json:"template_info_bits"`
	Level               string                       `json:"level"`
	Template            string                       `json:"template"`
	TemplateProbability float64                      `json:"template_probability"`
	TopToken            string                       `json:"top_token,omitempty"`
	TopTokenBits        float64                      `json:"top_token_bits,omitempty"`
	TokenContributors   []infomodel.TokenContributor `json:"token_contributors,omitempty"`
	Line                string                       `json:"line"`
}

func runRank(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	top, _ := cmd.Flags().GetInt("top")
	csvPath, _ := cmd.Flags().GetString("csv")
	jsonPath, _ := cmd.Flags().GetString("json")
	allContributors, _ := cmd.Flags().GetBool("all-token-contributors")

	model := buildModel(cmd)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer file.Close()

	var ranked []rankedLine
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		parsed := parser.ParseLine(raw)
		level := config.ParseLevel(parsed.Level)

		template, tokens := model.Observe(parsed.Message)
		result := model.Score(template, tokens, level)

		entry := rankedLine{
			LineNo:              lineNo,
			Novelty:             result.Novelty,
			Score:               result.Score,
			TokenInfoBits:       result.TokenInfoBits,
			TemplateInfoBits:    result.TemplateInfoBits,
			Level:               parsed.Level,
			Template:            result.Template,
			TemplateProbability: model.TemplateProbability(result.Template),
			Line:                strings.TrimSpace(parsed.Message),
		}
		if contributors := model.TokenSurprisals(result.Tokens); len(contributors) > 0 {
			entry.TopToken = contributors[0].Token
			entry.TopTokenBits = contributors[0].Bits
			if jsonPath != "" {
				if !allContributors && len(contributors) > 10 {
					contributors = contributors[:10]
				}
				entry.TokenContributors = contributors
			}
		}
		ranked = append(ranked, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Novelty > ranked[j].Novelty
	})
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	if csvPath != "" {
		if err := writeRankCSV(csvPath, ranked); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d ranked lines to %s\n", len(ranked), csvPath)
	}
	if jsonPath != "" {
		if err := writeRankJSON(jsonPath, ranked); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d ranked lines to %s\n", len(ranked), jsonPath)
	}
	if csvPath == "" && jsonPath == "" {
		for _, r := range ranked {
			line := r.Line
			if len(line) > 100 {
				line = line[:97] + "..."
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%6d  novelty=%.4f score=%.3f  %s\n", r.LineNo, r.Novelty, r.Score, line)
		}
	}

	stateOut, _ := cmd.Flags().GetString("state-out")
	maybeSaveModel(model, stateOut)
	printGuardrailSummary(model)
	return nil
}

func writeRankCSV(path string, ranked []rankedLine) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"line_no", "novelty", "score", "token_info_bits", "template_info_bits", "level", "template", "template_probability", "top_token", "top_token_bits", "line"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range ranked {
		row := []string{
			strconv.Itoa(r.LineNo),
			strconv.FormatFloat(r.Novelty, 'f', 6, 64),
			strconv.FormatFloat(r.Score, 'f', 6, 64),
			strconv.FormatFloat(r.TokenInfoBits, 'f', 6, 64),
			strconv.FormatFloat(r.TemplateInfoBits, 'f', 6, 64),
			r.Level,
			r.Template,
			strconv.FormatFloat(r.TemplateProbability, 'f', 8, 64),
			r.TopToken,
			strconv.FormatFloat(r.TopTokenBits, 'f', 4, 64),
			r.Line,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeRankJSON(path string, ranked []rankedLine) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(ranked)
}
