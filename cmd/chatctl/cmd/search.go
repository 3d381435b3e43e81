package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchPeer  string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search messages in the local mirror",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			results, err := c.SearchMessages(ctx, query, searchPeer, searchLimit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonFlag {
				return outputJSON(w, results)
			}
			if len(results) == 0 {
				_, _ = fmt.Fprintln(w, "No matches.")
				return nil
			}
			for _, r := range results {
				_, _ = fmt.Fprintf(w, "%s  %-20s %s\n", formatTime(r.Message.Timestamp), r.PeerID, r.Snippet)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchPeer, "peer", "", "only search the conversation with this peer")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "maximum number of results")
}
