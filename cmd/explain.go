package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bimmerbailey/cyro/internal/config"
	"github.com/bimmerbailey/cyro/internal/parser"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain [flags] <file>",
	Short: "Explain why a line would score the way it does",
	Long: `Prime the info model with a file to build up realistic token and
template frequencies, then score one supplied line and print a full
breakdown: novelty, score components, weights, top tokens by surprisal, and
template probability. A debugging/tuning aid, not part of the alert path.

Examples:
  cyro explain app.log --line "ERROR connection refused 10.0.0.5"
  cyro explain app.log --line "..." --json explanation.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	addScoringFlags(explainCmd)
	explainCmd.Flags().String("line", "", "a single log line to explain (required)")
	explainCmd.Flags().Int("top-tokens", 10, "how many tokens to list in the explanation")
	explainCmd.Flags().String("json", "", "write a JSON explanation to this path instead of printing text")
	explainCmd.Flags().Bool("all-token-contributors", false, "do not truncate the token contributor list in JSON output")
	_ = explainCmd.MarkFlagRequired("line")

	rootCmd.AddCommand(explainCmd)
}

type explainTokenContributor struct {
	Token string  `json:"token"`
	Prob  float64 `json:"prob"`
	Bits  float64 `json:"bits"`
	Freq  float64 `json:"freq"`
}

type explainOutput struct {
	Novelty             float64                   `json:"novelty"`
	Score               float64                   `json:"score"`
	TokenInfoBits       float64                   `json:"token_info_bits"`
	TemplateInfoBits    float64                   `json:"template_info_bits"`
	LevelBonus          float64                   `json:"level_bonus"`
	Weights             explainWeights            `json:"weights"`
	Template            string                    `json:"template"`
	TemplateProbability float64                   `json:"template_probability"`
	TokenContributors   []explainTokenContributor `json:"token_contributors"`
	Line                string                    `json:"line"`
}

type explainWeights struct {
	WToken    float64 `json:"w_token"`
	WTemplate float64 `json:"w_template"`
	WLevel    float64 `json:"w_level"`
}

func runExplain(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	line, _ := cmd.Flags().GetString("line")
	topTokens, _ := cmd.Flags().GetInt("top-tokens")
	jsonOut, _ := cmd.Flags().GetString("json")
	allContributors, _ := cmd.Flags().GetBool("all-token-contributors")

	model := buildModel(cmd)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filePath, err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		parsed := parser.ParseLine(scanner.Text())
		model.Observe(parsed.Message)
	}
	file.Close()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	parsed := parser.ParseLine(line)
	level := config.ParseLevel(parsed.Level)
	template, tokens := model.Analyze(parsed.Message)
	result := model.Score(template, tokens, level)

	fullDetails := model.TokenSurprisals(result.Tokens)
	details := fullDetails
	if !allContributors && len(details) > topTokens {
		details = details[:topTokens]
	}
	contributors := make([]explainTokenContributor, 0, len(details))
	for _, d := range details {
		contributors = append(contributors, explainTokenContributor{Token: d.Token, Prob: d.Prob, Bits: d.Bits, Freq: d.Freq})
	}

	cfg := model.Config()
	tplProb := model.TemplateProbability(result.Template)

	if jsonOut != "" {
		obj := explainOutput{
			Novelty:             result.Novelty,
			Score:               result.Score,
			TokenInfoBits:       result.TokenInfoBits,
			TemplateInfoBits:    result.TemplateInfoBits,
			LevelBonus:          result.LevelBonus,
			Weights:             explainWeights{WToken: cfg.WToken, WTemplate: cfg.WTemplate, WLevel: cfg.WLevel},
			Template:            result.Template,
			TemplateProbability: tplProb,
			TokenContributors:   contributors,
			Line:                parsed.Message,
		}
		out, err := os.Create(jsonOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", jsonOut, err)
		}
		defer out.Close()
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(obj); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote JSON explanation to %s\n", jsonOut)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Line: %s\n", parsed.Message)
		fmt.Fprintf(cmd.OutOrStdout(), "Score: %.3f (novelty=%.3f, token_info=%.3f, template_info=%.3f, level_bonus=%.2f)\n",
			result.Score, result.Novelty, result.TokenInfoBits, result.TemplateInfoBits, result.LevelBonus)
		fmt.Fprintf(cmd.OutOrStdout(), "Weights: w_token=%g w_template=%g w_level=%g\n", cfg.WToken, cfg.WTemplate, cfg.WLevel)

		if len(details) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Top tokens by surprisal:")
			for _, d := range details {
				fmt.Fprintf(cmd.OutOrStdout(), "   %-20s bits=%.2f freq=%g p~%.5f\n", d.Token, d.Bits, d.Freq, d.Prob)
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No tokens to report (line was empty after masking).")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Template: %s (p~%.5f)\n", result.Template, tplProb)
	}

	stateOut, _ := cmd.Flags().GetString("state-out")
	maybeSaveModel(model, stateOut)
	printGuardrailSummary(model)
	return nil
}
