package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/strategy"
)

func newRunCmd() *cobra.Command {
	var (
		inputPath string
		failFast  bool
		timeout   time.Duration
		verbose   bool
		traceMD   bool
	)

	cmd := &cobra.Command{
		Use:   "run <strategy>",
		Short: "Run a strategy once against an input file",
		Long: `Run a registered strategy locally, without a server, against a YAML or
JSON input file. The result is printed as JSON; --trace-md prints the
execution trace as a markdown report instead.

A failed run (validation, timeout, execution error) prints its result and
exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input map[string]any
			if err := decodeFile(inputPath, &input); err != nil {
				return err
			}

			opts := []strategy.Option{
				strategy.WithLogger(slog.Default()),
				strategy.WithFailFast(failFast),
				strategy.WithVerbose(verbose),
			}
			if timeout > 0 {
				opts = append(opts, strategy.WithTimeout(timeout))
			}

			res := docgen.DefaultCatalog().Run(cmd.Context(), args[0], input, opts...)

			if traceMD {
				if res.Trace == nil {
					return fmt.Errorf("no trace recorded for %s", args[0])
				}
				if _, err := fmt.Fprint(cmd.OutOrStdout(), res.Trace.Markdown()); err != nil {
					return err
				}
			} else if err := printJSON(cmd, res); err != nil {
				return err
			}

			if !res.OK {
				return fmt.Errorf("run failed: %s", res.Code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "f", "", "YAML or JSON input file (required)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop validation at the first error")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "execution timeout (default 30s)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "record verbose execution decisions")
	cmd.Flags().BoolVar(&traceMD, "trace-md", false, "print the execution trace as markdown instead of the result")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
