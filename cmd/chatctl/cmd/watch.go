package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/profile"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var watchPrefixes []string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream daemon events until interrupted",
	Long: `Stream daemon events until interrupted. Without --prefix the session,
conversation, notification and connection events are shown.

Examples:
  chatctl watch
  chatctl watch --prefix notify. --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, err := profileName()
		if err != nil {
			return err
		}
		c, err := dial(profile.SocketPath(name))
		if err != nil {
			return fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
		}
		defer func() { _ = c.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		err = c.WatchEvents(ctx, watchPrefixes, func(e api.Event) error {
			if jsonFlag {
				return outputJSON(w, e)
			}
			_, err := fmt.Fprintln(w, formatEvent(e))
			return err
		})
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || grpcstatus.Code(err) == codes.Canceled {
			return nil
		}
		return err
	},
}

func formatEvent(e api.Event) string {
	at := time.UnixMilli(e.OccurredAtMs).Format("15:04:05")
	detail := ""
	switch {
	case e.From != "" || e.To != "":
		detail = e.From + " -> " + e.To
	case e.Text != "":
		detail = e.Text
		if e.Peer != "" {
			detail = e.Peer + ": " + detail
		}
	case e.Peer != "":
		detail = e.Peer
		if e.Reason != "" {
			detail += " (" + e.Reason + ")"
		}
	case e.UserID != "":
		detail = fmt.Sprintf("user %s, generation %d", e.UserID, e.Generation)
	}
	if detail == "" {
		return at + " " + e.Kind
	}
	return at + " " + e.Kind + " " + detail
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSliceVar(&watchPrefixes, "prefix", nil, "event kind prefixes to stream (repeatable)")
}
