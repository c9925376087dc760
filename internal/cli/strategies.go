package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/shikko/docgen"
)

func newStrategiesCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List the registered strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listing := docgen.DefaultCatalog().List()

			if outputJSON {
				return printJSON(cmd, listing)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tINPUT FIELDS")
			for _, d := range listing {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Version, strings.Join(d.InputFields, ", "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")

	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "shikko %s\n", version)
			return err
		},
	}
}
