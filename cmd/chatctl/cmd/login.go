package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/jewelchat/internal/config"
	"github.com/spf13/cobra"
)

var (
	loginUser       string
	loginToken      string
	loginTokenStdin bool
	loginNoSave     bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Bind the daemon to a user id and token",
	Long: `Bind the daemon to a user id and token. The daemon drops the current
socket session and connects with the new identity.

The token can come from --token, from stdin with --token-stdin, or from the
` + config.EnvToken + ` environment variable. Credentials are stored in the
profile unless --no-save is given.

Examples:
  chatctl login --user 42 --token-stdin < token.txt
  ` + config.EnvToken + `=... chatctl login --user 42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		token, err := resolveToken(cmd)
		if err != nil {
			return err
		}
		user := strings.TrimSpace(loginUser)
		if user == "" {
			_, user = config.EnvCredentials()
		}
		if user == "" || token == "" {
			return errors.New("both a user id and a token are required")
		}
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			if err := c.SetCredentials(ctx, token, user, !loginNoSave); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the daemon's credentials and close the socket session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			if err := c.SetCredentials(ctx, "", "", !loginNoSave); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

func resolveToken(cmd *cobra.Command) (string, error) {
	if loginTokenStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read token from stdin: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
	if t := strings.TrimSpace(loginToken); t != "" {
		return t, nil
	}
	token, _ := config.EnvCredentials()
	return token, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "user id")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token")
	loginCmd.Flags().BoolVar(&loginTokenStdin, "token-stdin", false, "read the token from stdin")
	loginCmd.Flags().BoolVar(&loginNoSave, "no-save", false, "do not store the credentials in the profile")
	logoutCmd.Flags().BoolVar(&loginNoSave, "no-save", false, "keep the stored credentials")
}
