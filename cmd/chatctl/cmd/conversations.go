package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	convLimit  int
	convOffset int
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations from the local mirror, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c chatClient) error {
			page, err := c.ListConversations(ctx, convLimit, convOffset)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonFlag {
				return outputJSON(w, page)
			}
			if len(page.Conversations) == 0 {
				_, _ = fmt.Fprintln(w, "No conversations found.")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "PEER\tNAME\tROLE\tLAST\tPENDING\tPREVIEW")
			for _, cv := range page.Conversations {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					cv.PeerID, orDash(cv.DisplayName), orDash(cv.PeerRole),
					formatTime(cv.LastMessageAt), cv.PendingCount, truncate(cv.LastMessagePreview, 40))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.HasMore {
				_, _ = fmt.Fprintf(w, "... more with --offset %d\n", convOffset+len(page.Conversations))
			}
			return nil
		})
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.Flags().IntVarP(&convLimit, "limit", "n", 50, "page size")
	conversationsCmd.Flags().IntVar(&convOffset, "offset", 0, "rows to skip")
}
