package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Folken2/ag-ui-research/internal/api"
	"github.com/Folken2/ag-ui-research/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue a bearer token for a user",
	Long: `Signs a bearer token with AUTH_SECRET, skipping the password check.
Useful for curl testing against a server running with auth enabled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToken(args[0])
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash <password>",
	Short: "Hash a password for the AUTH_USERS list",
	Long: `Prints the password digest in the form AUTH_USERS expects, ready to
append to the comma-separated user list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(api.HashPassword(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(hashCmd)
}

func runToken(username string) error {
	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		return errors.New("AUTH_SECRET is not set")
	}
	if len(secret) < config.MinAuthSecretLength {
		return fmt.Errorf("AUTH_SECRET must be at least %d bytes", config.MinAuthSecretLength)
	}

	expiresAt := time.Now().Add(api.TokenTTL)
	fmt.Println(api.SignToken([]byte(secret), username, expiresAt))
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
