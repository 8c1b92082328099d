package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/twin-paypal/internal/scenario"
)

func newScenarioCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "scenario PATH",
		Short: "Run a YAML or JSON scenario file (or a directory of them) against a running twin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			runner := scenario.NewRunner(url)
			failed := 0
			for _, s := range scenarios {
				result, err := runner.Run(cmd.Context(), s)
				if err != nil {
					return fmt.Errorf("scenario %q: %w", s.Name, err)
				}
				fmt.Fprintf(out, "%s (%s)\n", result.ScenarioName, result.Duration.Round(time.Millisecond))
				for _, sr := range result.Steps {
					if sr.Passed {
						fmt.Fprintf(out, "  PASS %s\n", sr.Name)
					} else {
						fmt.Fprintf(out, "  FAIL %s: %s\n", sr.Name, sr.Error)
					}
				}
				if !result.Passed {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
			}
			fmt.Fprintf(out, "%d scenarios passed\n", len(scenarios))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", defaultAdminURL, "base URL of the running twin")
	return cmd
}
