package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/99designs/keyring"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	keyringService = "enginelink"
	keyringToken   = "auth_token"
)

func openRing() (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		ServiceName: keyringService,
	})
}

// storedToken returns the credential from the OS keyring, or empty when none
// is stored.
func storedToken() (string, error) {
	ring, err := openRing()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(keyringToken)
	if err != nil {
		if err == keyring.ErrKeyNotFound {
			return "", nil
		}
		return "", err
	}
	return string(item.Data), nil
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored engine credential",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the engine credential in the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		token := flagToken
		if token == "" {
			fmt.Fprint(cmd.OutOrStdout(), "Token: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(string(raw))
		}
		if token == "" {
			return fmt.Errorf("no token provided")
		}

		ring, err := openRing()
		if err != nil {
			return err
		}
		if err := ring.Set(keyring.Item{
			Key:   keyringToken,
			Data:  []byte(token),
			Label: "enginelink engine credential",
		}); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Credential stored.")
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ring, err := openRing()
		if err != nil {
			return err
		}
		if err := ring.Remove(keyringToken); err != nil && err != keyring.ErrKeyNotFound {
			return fmt.Errorf("remove token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Credential removed.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a credential is stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		token, err := storedToken()
		if err != nil {
			return err
		}
		if token == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No credential stored.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Credential stored (%d bytes).\n", len(token))
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
