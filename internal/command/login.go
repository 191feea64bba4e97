package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/backend"
)

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save backend credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")
			userID, _ := cmd.Flags().GetString("user-id")
			userName, _ := cmd.Flags().GetString("user-name")
			configPath, _ := cmd.Flags().GetString("config")

			baseURL, err := backend.NormalizeBaseURL(rawURL)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return writeCommandError(cmd, fmt.Errorf("--token is required"))
			}

			dir := configDir(configPath)
			creds := backend.Credentials{
				BaseURL:  baseURL,
				Token:    token,
				UserID:   strings.TrimSpace(userID),
				UserName: strings.TrimSpace(userName),
				SavedAt:  time.Now().Unix(),
			}
			if err := backend.SaveCredentials(dir, creds); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials for %s to %s\n", baseURL, backend.CredentialsPath(dir))
			return nil
		},
	}
	cmd.Flags().String("url", "", "backend base URL")
	cmd.Flags().String("token", "", "API token")
	cmd.Flags().String("user-id", "", "your user id")
	cmd.Flags().String("user-name", "", "your display name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
