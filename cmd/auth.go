package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/meetsync/config"
	"github.com/otherjamesbrown/meetsync/credentials"
)

// Auth command flags.
var (
	authSecret         string
	authNonInteractive bool
)

// AuthCmd represents the auth command group.
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage upstream credentials",
	Long: `Manage the OAuth client secret used to talk to the meeting platform.

The account ID and client ID live in the config file; the client secret is
stored in the system keyring and never written to disk. The
MEETSYNC_CLIENT_SECRET environment variable overrides the keyring, which
suits headless scheduled runs.`,
}

// authLoginCmd stores the client secret.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the client secret in the system keyring",
	Long: `Store the OAuth client secret for the configured client ID.

Examples:
  # Prompt for the secret (not echoed)
  meetsync auth login

  # Non-interactive
  meetsync auth login --secret '...'`,
	RunE: runAuthLogin,
}

// authStatusCmd verifies the stored credentials.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that stored credentials can obtain a token",
	RunE:  runAuthStatus,
}

// authLogoutCmd removes the stored secret.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the client secret from the system keyring",
	RunE:  runAuthLogout,
}

func init() {
	authLoginCmd.Flags().StringVar(&authSecret, "secret", "", "Client secret (prompted when omitted)")
	authLoginCmd.Flags().BoolVar(&authNonInteractive, "non-interactive", false, "Fail instead of prompting for input")

	AuthCmd.AddCommand(authLoginCmd)
	AuthCmd.AddCommand(authStatusCmd)
	AuthCmd.AddCommand(authLogoutCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	secret := authSecret
	if secret == "" {
		if authNonInteractive {
			return fmt.Errorf("--secret is required in non-interactive mode")
		}
		fmt.Fprintf(os.Stderr, "Client secret for %s: ", cfg.Upstream.ClientID)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading secret: %w", err)
		}
		secret = string(raw)
	}
	if secret == "" {
		return fmt.Errorf("client secret must not be empty")
	}

	if err := credentials.StoreSecret(cfg.Upstream.ClientID, secret); err != nil {
		return fmt.Errorf("storing secret: %w", err)
	}
	fmt.Printf("Secret stored for client %s\n", cfg.Upstream.ClientID)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	secret, err := credentials.LoadSecret(cfg.Upstream.ClientID)
	if err != nil {
		return fmt.Errorf("no stored secret for client %s (run 'meetsync auth login'): %w",
			cfg.Upstream.ClientID, err)
	}

	tokens := credentials.NewManager(credentials.ManagerConfig{
		AuthURL:      cfg.Upstream.AuthURL,
		AccountID:    cfg.Upstream.AccountID,
		ClientID:     cfg.Upstream.ClientID,
		ClientSecret: secret,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tok, err := tokens.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	fmt.Printf("Authenticated as client %s (token valid until %s)\n",
		cfg.Upstream.ClientID, tok.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if err := credentials.DeleteSecret(cfg.Upstream.ClientID); err != nil {
		return fmt.Errorf("removing secret: %w", err)
	}
	fmt.Printf("Secret removed for client %s\n", cfg.Upstream.ClientID)
	return nil
}
