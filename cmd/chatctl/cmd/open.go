package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var openLimit int

var openCmd = &cobra.Command{
	Use:   "open <peer>",
	Short: "Load the history of a conversation and print it",
	Long: `Load the history of a conversation from the backend, merge it with the
messages the daemon already holds and print the result, oldest first.

When the history request fails the locally known messages are printed and
the failure is reported on stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			st, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}
			t, err := c.OpenConversation(ctx, args[0], openLimit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonFlag {
				return outputJSON(w, t)
			}
			if t.HistoryError != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: history unavailable: %s\n", t.HistoryError)
			}
			if len(t.Messages) == 0 {
				_, _ = fmt.Fprintln(w, "No messages.")
				return nil
			}
			for _, m := range t.Messages {
				printMessage(w, m, st.UserID)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().IntVarP(&openLimit, "limit", "n", 50, "number of most recent messages to print (0 = all)")
}
