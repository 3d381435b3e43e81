package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and session status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			st, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonFlag {
				return outputJSON(w, st)
			}
			user := st.UserID
			if user == "" {
				user = "- (run chatctl login)"
			}
			_, _ = fmt.Fprintf(w, "Profile:       %s\n", st.Profile)
			_, _ = fmt.Fprintf(w, "User:          %s\n", user)
			_, _ = fmt.Fprintf(w, "State:         %s\n", st.State)
			_, _ = fmt.Fprintf(w, "Connected:     %v\n", st.Connected)
			_, _ = fmt.Fprintf(w, "Generation:    %d\n", st.Generation)
			_, _ = fmt.Fprintf(w, "Conversations: %d\n", st.Conversations)
			_, _ = fmt.Fprintf(w, "Messages:      %d\n", st.Messages)
			_, _ = fmt.Fprintf(w, "Uptime:        %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
			if len(st.OpenPeers) > 0 {
				_, _ = fmt.Fprintf(w, "Open:          %s\n", strings.Join(st.OpenPeers, ", "))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
