package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/profile"
	"github.com/matheus3301/jewelchat/internal/store"
	"github.com/matheus3301/jewelchat/internal/tui/client"
	"github.com/spf13/cobra"
)

var (
	profileFlag string
	jsonFlag    bool
	timeoutFlag time.Duration
)

// chatClient is the slice of the daemon API the commands use.
type chatClient interface {
	GetStatus(ctx context.Context) (api.Status, error)
	SetCredentials(ctx context.Context, token, userID string, persist bool) error
	ListConversations(ctx context.Context, limit, offset int) (api.ConversationPage, error)
	OpenConversation(ctx context.Context, peer string, limit int) (api.Thread, error)
	SendText(ctx context.Context, peer, text string) (chat.Message, error)
	Resend(ctx context.Context, peer, tempID string) (chat.Message, error)
	SearchMessages(ctx context.Context, query, peer string, limit int) ([]store.SearchResult, error)
	WatchEvents(ctx context.Context, prefixes []string, fn func(api.Event) error) error
	Close() error
}

// dial opens a client for the daemon listening on socketPath.
var dial = func(socketPath string) (chatClient, error) {
	return client.New(socketPath)
}

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Control a jewelchat daemon",
	Long: `chatctl talks to the jewelchat daemon of a profile over its Unix socket.

Start the daemon with "chatd --profile <name>" or let chattui start it.

Use "chatctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "request timeout")
}

// profileName resolves and validates the selected profile.
func profileName() (string, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// withClient connects to the profile daemon and runs fn with a request
// context bounded by --timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c chatClient) error) error {
	name, err := profileName()
	if err != nil {
		return err
	}
	c, err := dial(profile.SocketPath(name))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()
	return fn(ctx, c)
}
