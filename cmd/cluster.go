package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/bimmerbailey/cyro/internal/parser"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster [flags] <file>",
	Short: "Show the most common log-line templates in a file",
	Long: `Canonicalize every line of a file through the same masking rules used
for scoring, count how often each resulting template occurs, and print the
most frequent ones. Independent of alerting; a quick way to see the shape of
a corpus before tuning a tail session.

Examples:
  cyro cluster app.log
  cyro cluster --top 50 app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func init() {
	clusterCmd.Flags().Int("top", 30, "number of templates to show")
	clusterCmd.Flags().StringSlice("mask", nil, "custom regex=replacement mask (repeatable)")
	clusterCmd.Flags().String("mask-order", "before", "apply custom masks before or after built-ins")

	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	top, _ := cmd.Flags().GetInt("top")

	tpl := templaterFromFlags(cmd)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer file.Close()

	counts := make(map[string]int)
	order := make([]string, 0)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		parsed := parser.ParseLine(scanner.Text())
		t := tpl.ToTemplate(parsed.Message)
		if _, seen := counts[t]; !seen {
			order = append(order, t)
		}
		counts[t]++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if top > 0 && top < len(order) {
		order = order[:top]
	}
	for _, t := range order {
		fmt.Fprintf(cmd.OutOrStdout(), "%6d  %s\n", counts[t], t)
	}
	return nil
}
