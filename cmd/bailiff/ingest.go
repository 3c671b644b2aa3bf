package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/bailiff/internal/classifier"
	"github.com/MikeSquared-Agency/bailiff/internal/config"
)

func newIngestCmd() *cobra.Command {
	var (
		source string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Process one notice file (or stdin) and print the result",
		Long: `Parse, classify and reconcile a single notice. With --dry-run the notice is
only parsed and classified; nothing is stored or sent to the calendar.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if source == "" {
				source = args[0]
			}

			p, err := buildPipeline(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			defer p.Close()

			if dryRun {
				n, err := p.parser.Parse(raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"notice":         n,
					"classification": classifier.Classify(raw),
				})
			}

			res, err := p.proc.Ingest(cmd.Context(), raw, source)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source label stored with the notice (default: the file name)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and classify only")
	return cmd
}

func readInput(stdin io.Reader, arg string) (string, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("read notice: %w", err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
