package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	_ "github.com/duckdb/duckdb-go/v2"

	"duck-access/engine"
)

func newQueryCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run SQL in an embedded DuckDB session with on-demand table resolution",
		Long: `Runs the given SQL in an in-memory DuckDB session. Tables that DuckDB
does not know are resolved through the manifest service and installed as
temp views before the query is retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := engine.Open(cmd.Context())
			if err != nil {
				return err
			}
			sess := engine.NewSession(db, a.engine, a.creds, engine.WithSessionLogger(a.logger))
			defer sess.Close() //nolint:errcheck

			rows, err := sess.Query(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rows.Close() //nolint:errcheck

			if jsonOutput {
				return printRowsJSON(rows)
			}
			return printRowsTable(rows)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print rows as JSON objects")
	return cmd
}

// scanRow reads the current row into a map keyed by column name.
func scanRow(rows *sql.Rows, cols []string) (map[string]any, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(cols))
	for i, c := range cols {
		if b, ok := values[i].([]byte); ok {
			out[c] = string(b)
		} else {
			out[c] = values[i]
		}
	}
	return out, nil
}

func printRowsJSON(rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return err
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func printRowsTable(rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(cols, "\t"))

	count := 0
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return err
		}
		cells := make([]string, len(cols))
		for i, c := range cols {
			if row[c] == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprint(row[c])
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "(%d rows)\n", count)
	return nil
}
