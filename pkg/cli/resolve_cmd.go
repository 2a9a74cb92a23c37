package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"duck-access/rewrite"
)

// oneOutputFlag rejects combining two output-shaping flags.
func oneOutputFlag(fs *pflag.FlagSet, a, b string) error {
	if fs.Changed(a) && fs.Changed(b) {
		return fmt.Errorf("--%s and --%s are mutually exclusive", a, b)
	}
	return nil
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		schema     string
		jsonOutput bool
		selectForm bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <table>",
		Short: "Fetch a table's manifest and print the rewritten fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := oneOutputFlag(cmd.Flags(), "json", "select"); err != nil {
				return err
			}
			auth, err := a.auth()
			if err != nil {
				return err
			}

			res, err := a.engine.Rewrite(cmd.Context(), schema, args[0], auth)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printResolveJSON(res.Manifest.Schema, args[0], res)
			}
			if selectForm {
				fmt.Println(res.Fragment.SelectSQL())
				return nil
			}

			fmt.Printf("table:      %s.%s\n", res.Manifest.Schema, res.Manifest.Table)
			fmt.Printf("files:      %d\n", len(res.Manifest.Files))
			fmt.Printf("filters:    %d\n", len(res.Manifest.RowFilters))
			fmt.Printf("masks:      %d\n", len(res.Manifest.ColumnMasks))
			fmt.Printf("expires_at: %s\n", res.Manifest.ExpiresAt.Format(time.RFC3339))
			fmt.Printf("fragment:   %s\n", res.Fragment.Ref())
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "main", "schema the table belongs to")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&selectForm, "select", false, "print only the full SELECT over the fragment")
	return cmd
}

func printResolveJSON(schema, table string, res *rewrite.Result) error {
	warnings := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		warnings = append(warnings, w.String())
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"schema":     schema,
		"table":      table,
		"files":      res.Manifest.Files,
		"fragment":   res.Fragment.Ref(),
		"select_sql": res.Fragment.SelectSQL(),
		"expires_at": res.Manifest.ExpiresAt.Format(time.RFC3339),
		"warnings":   warnings,
	})
}
