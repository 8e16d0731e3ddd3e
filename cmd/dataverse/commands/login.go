package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/powerplatform-go/dataverse/internal/constants"
	"github.com/powerplatform-go/dataverse/pkg/dataverse"
	"github.com/powerplatform-go/dataverse/pkg/dvclient"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		orgURL       string
		tenantID     string
		clientID     string
		clientSecret string
		token        string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to a Dataverse environment",
		Long: `Authenticate with a Dataverse organization and store the credentials.

Either pass a pre-acquired access token with --token, or an Entra ID app
registration with --tenant and --client-id. The client secret is prompted
for when not supplied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if orgURL == "" {
				orgURL = viper.GetString("url")
			}

			if orgURL == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Organization URL: ")
				orgURL, _ = reader.ReadString('\n')
				orgURL = strings.TrimSpace(orgURL)
			}

			if orgURL == "" {
				return constants.ErrNoOrgConfigured
			}

			clientConfig := &dataverse.Config{BaseURL: orgURL}

			switch {
			case token != "":
				clientConfig.AccessToken = token
			case clientID != "":
				if clientSecret == "" {
					fmt.Print("Client secret: ")

					secret, err := term.ReadPassword(syscall.Stdin)

					fmt.Println()

					if err != nil {
						return fmt.Errorf("reading client secret: %w", err)
					}

					clientSecret = string(secret)
				}

				clientConfig.TenantID = tenantID
				clientConfig.ClientID = clientID
				clientConfig.ClientSecret = clientSecret
			default:
				return constants.ErrNoCredentials
			}

			client, err := dvclient.New(clientConfig)
			if err != nil {
				return err
			}

			// Verify the credentials with a metadata request before
			// persisting anything.
			_, err = client.Tables().List(context.Background())
			if err != nil {
				return fmt.Errorf("verifying credentials: %w", err)
			}

			config := loadConfig()
			config.URL = clientConfig.BaseURL
			config.TenantID = tenantID
			config.ClientID = clientID
			config.ClientSecret = clientSecret
			config.Token = token

			err = saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Printf("Logged in to %s\n", clientConfig.BaseURL)

			return nil
		},
	}

	cmd.Flags().StringVar(&orgURL, "org", "", "organization URL")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Entra ID tenant id")
	cmd.Flags().StringVar(&clientID, "client-id", "", "app registration client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "app registration client secret")
	cmd.Flags().StringVar(&token, "token", "", "pre-acquired access token")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of the current environment",
		Long:  "Remove stored credentials, keeping the rest of the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.TenantID = ""
			config.ClientID = ""
			config.ClientSecret = ""
			config.Token = ""

			err := saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Println("Logged out")

			return nil
		},
	}
}
