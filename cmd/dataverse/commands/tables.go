package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

// NewTablesCommand creates the tables command group.
func NewTablesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tables",
		Aliases: []string{"table"},
		Short:   "Inspect table metadata",
		Long:    "Resolve and list Dataverse table definitions",
	}

	cmd.AddCommand(newTablesInfoCommand())
	cmd.AddCommand(newTablesListCommand())

	return cmd
}

func newTablesInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info TABLE",
		Short: "Show metadata for one table",
		Long:  "Resolve a table by its logical, schema, or entity set name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return err
			}

			info, err := client.Tables().Info(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("resolving table: %w", err)
			}

			output := viper.GetString("output")
			switch output {
			case constants.FormatJSON:
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")

				return encoder.Encode(info)
			case constants.FormatYAML:
				encoder := yaml.NewEncoder(os.Stdout)

				return encoder.Encode(info)
			default:
				table := tablewriter.NewWriter(os.Stdout)
				table.Header("Property", "Value")
				_ = table.Append("Logical Name", info.LogicalName)
				_ = table.Append("Schema Name", info.SchemaName)
				_ = table.Append("Entity Set Name", info.EntitySetName)
				_ = table.Append("Metadata ID", info.MetadataID)
				_ = table.Append("Primary ID Attribute", info.PrimaryIDAttribute())

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}
			}

			return nil
		},
	}
}

func newTablesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return err
			}

			tables, err := client.Tables().List(context.Background())
			if err != nil {
				return fmt.Errorf("listing tables: %w", err)
			}

			return renderTableList(tables)
		},
	}
}

func renderTableList(tables []dataverse.TableInfo) error {
	output := viper.GetString("output")
	switch output {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(tables)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(tables)
	default:
		writer := tablewriter.NewWriter(os.Stdout)
		writer.Header("Logical Name", "Schema Name", "Entity Set Name")

		for _, info := range tables {
			_ = writer.Append(info.LogicalName, info.SchemaName, info.EntitySetName)
		}

		if err := writer.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		fmt.Printf("\nTotal: %d\n", len(tables))
	}

	return nil
}
