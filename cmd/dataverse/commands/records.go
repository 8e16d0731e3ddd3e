package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// NewRecordsCommand creates the records command group.
func NewRecordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record", "rows"},
		Short:   "Manage Dataverse rows",
		Long:    "Create, read, update, delete, and list rows in Dataverse tables",
	}

	cmd.AddCommand(newRecordsGetCommand())
	cmd.AddCommand(newRecordsListCommand())
	cmd.AddCommand(newRecordsCreateCommand())
	cmd.AddCommand(newRecordsUpdateCommand())
	cmd.AddCommand(newRecordsDeleteCommand())

	return cmd
}

func newRecordsGetCommand() *cobra.Command {
	var columns string

	cmd := &cobra.Command{
		Use:   "get TABLE ID",
		Short: "Get a single row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return err
			}

			options := dataverse.NewQueryOptions()
			if columns != "" {
				options = options.WithSelect(splitColumns(columns)...)
			}

			record, err := client.Records().Get(context.Background(), args[0], args[1], options)
			if err != nil {
				return fmt.Errorf("getting record: %w", err)
			}

			return renderRecord(record)
		},
	}

	cmd.Flags().StringVar(&columns, "columns", "", "comma-separated columns to return")

	return cmd
}

//nolint:funlen // flag wiring dominates the length
func newRecordsListCommand() *cobra.Command {
	var (
		columns  string
		filter   string
		orderBy  string
		top      int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:     "list TABLE",
		Aliases: []string{"ls"},
		Short:   "List rows",
		Long:    "List rows of a table, following server paging until done or --top is reached",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return err
			}

			options := dataverse.NewQueryOptions()
			if columns != "" {
				options = options.WithSelect(splitColumns(columns)...)
			}

			if filter != "" {
				options = options.WithFilter(filter)
			}

			if orderBy != "" {
				options = options.WithOrderBy(orderBy)
			}

			if top > 0 {
				options = options.WithTop(top)
			}

			if pageSize > 0 {
				options = options.WithPageSize(pageSize)
			}

			rows, err := client.Records().List(context.Background(), args[0], options).All()
			if err != nil {
				return fmt.Errorf("listing records: %w", err)
			}

			return renderRecords(rows)
		},
	}

	cmd.Flags().StringVar(&columns, "columns", "", "comma-separated columns to return")
	cmd.Flags().StringVar(&filter, "filter", "", "OData $filter expression")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "sort clause, e.g. 'name asc'")
	cmd.Flags().IntVar(&top, "top", 0, "maximum total rows to return")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per server page")

	return cmd
}

func newRecordsCreateCommand() *cobra.Command {
	var (
		payload  string
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "create TABLE",
		Short: "Create one or more rows",
		Long: `Create rows in a table.

A single JSON object passed with --data creates one row. A JSON file passed
with --from-file may hold an object or an array; arrays are sent through one
bulk CreateMultiple request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := recordsFromFlags(payload, fromFile)
			if err != nil {
				return err
			}

			client, err := createClient()
			if err != nil {
				return err
			}

			ids, err := client.Records().CreateMany(context.Background(), args[0], records)
			if err != nil {
				return fmt.Errorf("creating records: %w", err)
			}

			for _, id := range ids {
				fmt.Println(id)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&payload, "data", "d", "", "row attributes as a JSON object")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "JSON file with a row object or array of rows")

	return cmd
}

func newRecordsUpdateCommand() *cobra.Command {
	var (
		payload   string
		returning bool
	)

	cmd := &cobra.Command{
		Use:   "update TABLE ID [ID...]",
		Short: "Update one or more rows",
		Long: `Update rows in a table.

With one id the change is a plain update. With several ids the same change
set is broadcast to all of them through one bulk UpdateMultiple request.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if payload == "" {
				return constants.ErrPayloadRequired
			}

			changes, err := parseRecord(payload)
			if err != nil {
				return err
			}

			client, err := createClient()
			if err != nil {
				return err
			}

			table, ids := args[0], args[1:]
			ctx := context.Background()

			if len(ids) == 1 && returning {
				record, err := client.Records().UpdateReturning(ctx, table, ids[0], changes)
				if err != nil {
					return fmt.Errorf("updating record: %w", err)
				}

				return renderRecord(record)
			}

			err = client.Records().UpdateMany(ctx, table, ids, []dataverse.Record{changes})
			if err != nil {
				return fmt.Errorf("updating records: %w", err)
			}

			fmt.Printf("Updated %d record(s)\n", len(ids))

			return nil
		},
	}

	cmd.Flags().StringVarP(&payload, "data", "d", "", "changed attributes as a JSON object")
	cmd.Flags().BoolVar(&returning, "returning", false, "print the updated row (single id only)")

	return cmd
}

func newRecordsDeleteCommand() *cobra.Command {
	var (
		useJob  bool
		jobName string
	)

	cmd := &cobra.Command{
		Use:     "delete TABLE ID [ID...]",
		Aliases: []string{"rm"},
		Short:   "Delete one or more rows",
		Long: `Delete rows from a table.

By default each row is deleted with its own request. With --job the ids are
handed to a server-side BulkDelete job instead, which runs asynchronously.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return err
			}

			table, ids := args[0], args[1:]

			var options *dataverse.DeleteManyOptions
			if useJob {
				options = &dataverse.DeleteManyOptions{UseBulkDeleteJob: true, JobName: jobName}
			}

			job, err := client.Records().DeleteMany(context.Background(), table, ids, options)
			if err != nil {
				return fmt.Errorf("deleting records: %w", err)
			}

			if job != nil {
				fmt.Printf("Scheduled bulk delete job %s\n", job.JobID)
			} else {
				fmt.Printf("Deleted %d record(s)\n", len(ids))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&useJob, "job", false, "delete through a server-side BulkDelete job")
	cmd.Flags().StringVar(&jobName, "job-name", "", "name for the BulkDelete job")

	return cmd
}

// recordsFromFlags resolves the create payload from --data or --from-file.
func recordsFromFlags(payload, fromFile string) ([]dataverse.Record, error) {
	switch {
	case payload != "" && fromFile != "":
		return nil, constants.ErrPayloadRequired
	case fromFile != "":
		return readRecordsFile(fromFile)
	case payload != "":
		record, err := parseRecord(payload)
		if err != nil {
			return nil, err
		}

		return []dataverse.Record{record}, nil
	default:
		return nil, constants.ErrPayloadRequired
	}
}

func splitColumns(columns string) []string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}

	return parts
}
