package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/powerplatform-go/dataverse/internal/constants"
)

// Config represents the CLI configuration persisted in the config file.
type Config struct {
	URL          string `json:"url,omitempty"           yaml:"url,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"     yaml:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"     yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
	Token        string `json:"token,omitempty"         yaml:"token,omitempty"`
	SQLAPIName   string `json:"sql_api_name,omitempty"  yaml:"sql_api_name,omitempty"`
	Output       string `json:"output,omitempty"        yaml:"output,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage dataverse CLI configuration including the organization URL and credentials",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			masked := *config
			if masked.ClientSecret != "" {
				masked.ClientSecret = "***"
			}

			if masked.Token != "" {
				masked.Token = "***"
			}

			output := viper.GetString("output")
			switch output {
			case constants.FormatJSON:
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")

				return encoder.Encode(masked)
			case constants.FormatYAML:
				encoder := yaml.NewEncoder(os.Stdout)

				return encoder.Encode(masked)
			default:
				table := tablewriter.NewWriter(os.Stdout)
				table.Header("Setting", "Value")
				_ = table.Append("url", masked.URL)
				_ = table.Append("tenant_id", masked.TenantID)
				_ = table.Append("client_id", masked.ClientID)
				_ = table.Append("client_secret", masked.ClientSecret)
				_ = table.Append("token", masked.Token)
				_ = table.Append("sql_api_name", masked.SQLAPIName)
				_ = table.Append("output", masked.Output)

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}
			}

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value, e.g. 'dataverse config set url https://org.crm.dynamics.com'",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := applyConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Printf("Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := applyConfigValue(config, args[0], "")
			if err != nil {
				return err
			}

			err = saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Printf("Unset %s\n", args[0])

			return nil
		},
	}
}

func newConfigClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear configuration",
		Long:  "Remove the configuration file entirely",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := os.Remove(configFilePath())
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove config file: %w", err)
			}

			fmt.Println("Cleared all configuration")

			return nil
		},
	}
}

//nolint:err113 // the key name belongs in the message
func applyConfigValue(config *Config, key, value string) error {
	switch key {
	case "url":
		config.URL = value
	case "tenant_id":
		config.TenantID = value
	case "client_id":
		config.ClientID = value
	case "client_secret":
		config.ClientSecret = value
	case "token":
		config.Token = value
	case "sql_api_name":
		config.SQLAPIName = value
	case "output":
		if value != "" && value != "table" && value != constants.FormatJSON && value != constants.FormatYAML {
			return constants.ErrInvalidOutputType
		}

		config.Output = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	return nil
}

// configFilePath returns the active config file, falling back to the default
// location.
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yml"
	}

	return filepath.Join(home, ".dataverse", "config.yml")
}

// loadConfig reads the config file, returning an empty config when missing.
func loadConfig() *Config {
	config := &Config{}

	data, err := os.ReadFile(configFilePath())
	if err != nil {
		return config
	}

	_ = yaml.Unmarshal(data, config)

	return config
}

// saveConfig writes the config file with restrictive permissions since it
// may hold credentials.
func saveConfig(config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	path := configFilePath()

	err = os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}

	return nil
}
