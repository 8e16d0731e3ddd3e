package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/powerplatform-go/dataverse/internal/constants"
)

// NewQueryCommand creates the query command group.
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run ad-hoc queries",
		Long:  "Run ad-hoc queries against a Dataverse environment",
	}

	cmd.AddCommand(newQuerySQLCommand())

	return cmd
}

func newQuerySQLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sql STATEMENT",
		Short: "Run a read-only SQL query",
		Long: `Run a read-only T-SQL SELECT statement through the SQL passthrough API.

The environment must expose a SQL passthrough custom API; configure its name
with 'dataverse config set sql_api_name <name>' when it differs from the
default.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statement := strings.TrimSpace(strings.Join(args, " "))
			if statement == "" {
				return constants.ErrQueryTextRequired
			}

			client, err := createClient()
			if err != nil {
				return err
			}

			rows, err := client.Query().SQL(context.Background(), statement)
			if err != nil {
				return fmt.Errorf("executing query: %w", err)
			}

			return renderRecords(rows)
		},
	}
}
