// Package cli implements the shikko command tree: the server, one-shot
// strategy runs, and file-based handoff tooling.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewRootCmd builds the shikko command tree. The version string comes from
// the build (ldflags) and is reported by both --version and the version
// subcommand.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "shikko",
		Short: "Strategy execution and agent handoff server",
		Long: `shikko runs document strategies against structured input and coordinates
handoff packages between agents. It serves an HTTP API and an MCP surface,
and doubles as a local tool for one-shot runs and handoff files.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate("shikko {{.Version}}\n")

	root.AddCommand(
		newServeCmd(version),
		newRunCmd(),
		newStrategiesCmd(),
		newHandoffCmd(),
		newVersionCmd(version),
	)

	return root
}

// decodeFile reads a YAML or JSON file into out. The document is decoded
// as YAML (JSON is a YAML subset) and re-marshalled through JSON so struct
// json tags apply either way.
func decodeFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	bridge, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}
	if err := json.Unmarshal(bridge, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
