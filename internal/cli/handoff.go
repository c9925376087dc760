package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/shikko/handoff"
)

func newHandoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Prepare and parse handoff package files",
	}
	cmd.AddCommand(newHandoffPrepareCmd(), newHandoffParseCmd())
	return cmd
}

// handoffRequestFile is the on-disk shape of a prepare request. Same shape
// as the HTTP create request, minus the seal flag (a CLI flag here).
type handoffRequestFile struct {
	Source            string                `json:"source"`
	Target            string                `json:"target"`
	Task              string                `json:"task,omitempty"`
	Instructions      *handoff.Instructions `json:"instructions,omitempty"`
	Context           handoff.Context       `json:"context"`
	Priority          string                `json:"priority,omitempty"`
	ExpirationMinutes int                   `json:"expiration_minutes,omitempty"`
}

func newHandoffPrepareCmd() *cobra.Command {
	var (
		requestPath string
		seal        bool
		privKeyPath string
		pubKeyPath  string
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Prepare a handoff package from a request file",
		Long: `Build a handoff package from a YAML or JSON request file and print it.
With --seal the output is a signed envelope ({"sealed": "<token>"}) that
survives untrusted transport; sealing needs the Ed25519 key pair from
scripts/genkey.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req handoffRequestFile
			if err := decodeFile(requestPath, &req); err != nil {
				return err
			}

			var instructions any
			if req.Instructions != nil {
				instructions = req.Instructions
			} else if req.Task != "" {
				instructions = req.Task
			}

			pkg, err := handoff.Prepare(handoff.Request{
				Source:            req.Source,
				Target:            req.Target,
				Context:           req.Context,
				Instructions:      instructions,
				Priority:          handoff.Priority(req.Priority),
				ExpirationMinutes: req.ExpirationMinutes,
			})
			if err != nil {
				return err
			}

			if !seal {
				return printJSON(cmd, pkg)
			}

			sealer, err := newFileSealer(privKeyPath, pubKeyPath)
			if err != nil {
				return err
			}
			token, err := sealer.Seal(pkg)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"sealed": token})
		},
	}

	cmd.Flags().StringVarP(&requestPath, "request", "f", "", "YAML or JSON request file (required)")
	cmd.Flags().BoolVar(&seal, "seal", false, "sign the package for untrusted transport")
	cmd.Flags().StringVar(&privKeyPath, "seal-private-key", "", "Ed25519 private key PEM (required with --seal)")
	cmd.Flags().StringVar(&pubKeyPath, "seal-public-key", "", "Ed25519 public key PEM (required with --seal)")
	_ = cmd.MarkFlagRequired("request")
	cmd.MarkFlagsRequiredTogether("seal", "seal-private-key", "seal-public-key")

	return cmd
}

func newHandoffParseCmd() *cobra.Command {
	var (
		privKeyPath string
		pubKeyPath  string
		markdown    bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a handoff document or sealed envelope",
		Long: `Parse a handoff package from a file and print it. The file holds either a
raw package document or a sealed envelope ({"sealed": "<token>"}); opening
a sealed envelope verifies the signature and content hash, and needs the
same key pair that sealed it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			var pkg *handoff.Package
			if token := sealedToken(raw); token != "" {
				sealer, err := newFileSealer(privKeyPath, pubKeyPath)
				if err != nil {
					return fmt.Errorf("sealed envelope: %w", err)
				}
				pkg, err = sealer.Open(token)
				if err != nil {
					return err
				}
			} else {
				pkg, err = handoff.Parse(raw)
				if err != nil {
					return err
				}
			}

			if markdown {
				_, err := fmt.Fprint(cmd.OutOrStdout(), pkg.Markdown())
				return err
			}
			return printJSON(cmd, pkg)
		},
	}

	cmd.Flags().StringVar(&privKeyPath, "seal-private-key", "", "Ed25519 private key PEM (sealed envelopes only)")
	cmd.Flags().StringVar(&pubKeyPath, "seal-public-key", "", "Ed25519 public key PEM (sealed envelopes only)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the package as a markdown brief")
	cmd.MarkFlagsRequiredTogether("seal-private-key", "seal-public-key")

	return cmd
}

// sealedToken extracts the token from a sealed envelope, or returns "" when
// the document is not one.
func sealedToken(raw []byte) string {
	var probe struct {
		Sealed string `json:"sealed"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Sealed
}

func newFileSealer(privPath, pubPath string) (*handoff.Sealer, error) {
	if privPath == "" || pubPath == "" {
		return nil, fmt.Errorf("--seal-private-key and --seal-public-key are required")
	}
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", privPath, err)
	}
	pubPEM, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pubPath, err)
	}
	return handoff.NewSealer(privPEM, pubPEM)
}
