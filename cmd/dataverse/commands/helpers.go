// Package commands implements the subcommands of the dataverse CLI.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
	"github.com/powerplatform-go/dataverse/pkg/dvclient"
)

const maxCellWidth = 60

// createClient builds a Dataverse client from flags, environment, and the
// config file. Flag values win over the stored configuration.
func createClient() (dataverse.Client, error) {
	config := loadConfig()

	orgURL := viper.GetString("url")
	if orgURL == "" {
		orgURL = config.URL
	}

	if orgURL == "" {
		return nil, constants.ErrNoOrgConfigured
	}

	clientConfig := &dataverse.Config{
		BaseURL:    orgURL,
		SQLAPIName: config.SQLAPIName,
	}

	token := viper.GetString("token")
	if token == "" {
		token = config.Token
	}

	switch {
	case token != "":
		clientConfig.AccessToken = token
	case config.ClientID != "" && config.ClientSecret != "":
		clientConfig.TenantID = config.TenantID
		clientConfig.ClientID = config.ClientID
		clientConfig.ClientSecret = config.ClientSecret
	default:
		return nil, constants.ErrNoCredentials
	}

	return dvclient.New(clientConfig)
}

// parseRecord parses a JSON object into a record.
func parseRecord(raw string) (dataverse.Record, error) {
	var record dataverse.Record

	err := json.Unmarshal([]byte(raw), &record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrInvalidRecordJSON, err)
	}

	return record, nil
}

// readRecordsFile reads a JSON file holding either one record object or an
// array of them.
func readRecordsFile(path string) ([]dataverse.Record, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from an explicit CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}

	var records []dataverse.Record

	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var single dataverse.Record

	err = json.Unmarshal(data, &single)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidRecordJSON, path)
	}

	return []dataverse.Record{single}, nil
}

// renderRecord writes one record in the requested output format.
func renderRecord(record dataverse.Record) error {
	output := viper.GetString("output")
	switch output {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		return encoder.Encode(record)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(record)
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Attribute", "Value")

		for _, key := range sortedKeys(record) {
			_ = table.Append(key, formatValue(record[key]))
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	return nil
}

// renderRecords writes a record list in the requested output format. The
// table view uses the union of all attribute names as columns.
func renderRecords(records []dataverse.Record) error {
	output := viper.GetString("output")
	switch output {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		return encoder.Encode(records)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(records)
	default:
		columns := collectColumns(records)

		headers := make([]any, len(columns))
		for i, column := range columns {
			headers[i] = column
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header(headers...)

		for _, record := range records {
			row := make([]string, 0, len(columns))
			for _, column := range columns {
				row = append(row, formatValue(record[column]))
			}

			_ = table.Append(row)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		fmt.Printf("\nTotal: %d\n", len(records))
	}

	return nil
}

// collectColumns returns the sorted union of attribute names, skipping OData
// annotations.
func collectColumns(records []dataverse.Record) []string {
	seen := make(map[string]bool)

	for _, record := range records {
		for key := range record {
			if strings.Contains(key, "@odata") {
				continue
			}

			seen[key] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}

	sort.Strings(columns)

	return columns
}

func sortedKeys(record dataverse.Record) []string {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// formatValue flattens a record value for table display.
func formatValue(value interface{}) string {
	if value == nil {
		return ""
	}

	var text string

	switch typed := value.(type) {
	case string:
		text = typed
	case float64:
		text = strings.TrimSuffix(fmt.Sprintf("%.2f", typed), ".00")
	case bool:
		if typed {
			return "true"
		}

		return "false"
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}

		text = string(data)
	}

	if len(text) > maxCellWidth {
		text = text[:maxCellWidth-3] + "..."
	}

	return text
}
