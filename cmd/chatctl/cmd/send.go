package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <peer> <text...>",
	Short: "Send a text message",
	Long: `Send a text message. The message is accepted optimistically; if the
socket is down it is kept as failed and can be sent again with
"chatctl resend <peer> <temp-id>".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			m, err := c.SendText(ctx, args[0], text)
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(cmd.OutOrStdout(), m)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (%s)\n", m.ID, deliveryState(m))
			return nil
		})
	},
}

var resendCmd = &cobra.Command{
	Use:   "resend <peer> <temp-id>",
	Short: "Send a pending or failed message again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			m, err := c.Resend(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(cmd.OutOrStdout(), m)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Resent %s (%s)\n", m.ID, deliveryState(m))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(resendCmd)
}
