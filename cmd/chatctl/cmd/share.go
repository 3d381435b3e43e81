package cmd

import (
	"fmt"

	"github.com/matheus3301/jewelchat/internal/config"
	"github.com/matheus3301/jewelchat/internal/profile"
	"github.com/matheus3301/jewelchat/internal/share"
	"github.com/spf13/cobra"
)

var (
	sharePNG  string
	shareSize int
)

var shareCmd = &cobra.Command{
	Use:   "share <peer>",
	Short: "Print a QR code linking to a conversation",
	Long: `Print the deep link to a conversation and render it as a QR code in
the terminal. The link is built on server.base_url from the config. With --png
the QR code is written to an image file instead.

This command does not need a running daemon.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(profile.ConfigPath())
		if err != nil {
			return err
		}
		if err := cfg.ApplyEnv(profile.EnvPath()); err != nil {
			return err
		}
		link, err := share.Link(cfg.Server.BaseURL, args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonFlag {
			return outputJSON(w, map[string]string{"peer": args[0], "link": link})
		}
		if sharePNG != "" {
			if err := share.WritePNG(link, sharePNG, shareSize); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "%s\nwritten to %s\n", link, sharePNG)
			return nil
		}
		qr, err := share.RenderText(link)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\n%s\n", qr, link)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
	shareCmd.Flags().StringVar(&sharePNG, "png", "", "write the QR code to this PNG file")
	shareCmd.Flags().IntVar(&shareSize, "size", 256, "PNG size in pixels")
}
