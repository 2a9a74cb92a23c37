package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInvalidateCmd(a *app) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "invalidate <table>",
		Short: "Drop every cached manifest for a table",
		Long: `Removes cached manifests for the table across all credentials, forcing a
refetch on the next reference. Useful after a server-side policy change.

The cache is process-local, so this only matters inside a long-lived
session; a fresh CLI invocation always starts with an empty cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cache.Invalidate(schema, args[0])
			fmt.Printf("invalidated %s.%s\n", schema, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "main", "schema the table belongs to")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Printf("duck-access version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
