package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"Tradyxa/internal/di"
)

var resolveFull bool

var resolveCmd = &cobra.Command{
	Use:   "resolve TICKER",
	Short: "Resolve one ticker snapshot and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		// stdout carries the document
		c.Log.Output = "stderr"

		p, err := di.InitializeResolver(c)
		if err != nil {
			return fmt.Errorf("resolver initialization failed: %w", err)
		}
		res, err := p.Resolve(cmd.Context(), args[0], resolveFull)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Snapshot)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveFull, "full", false, "Include the enrichment arrays")
}
