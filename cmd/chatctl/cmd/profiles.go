package cmd

import (
	"fmt"
	"time"

	"github.com/matheus3301/jewelchat/internal/lock"
	"github.com/matheus3301/jewelchat/internal/profile"
	"github.com/matheus3301/jewelchat/internal/tui/client"
	"github.com/spf13/cobra"
)

type profileEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List known profiles and whether their daemon is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		entries := make([]profileEntry, 0, len(names))
		for _, n := range names {
			e := profileEntry{
				Name:    n,
				Path:    profile.Dir(n),
				Running: client.Probe(profile.SocketPath(n), time.Second),
			}
			if e.Running {
				if h, err := lock.Inspect(profile.LockPath(n)); err == nil {
					e.PID = h.PID
				}
			}
			entries = append(entries, e)
		}

		w := cmd.OutOrStdout()
		if jsonFlag {
			return outputJSON(w, entries)
		}
		if len(entries) == 0 {
			_, _ = fmt.Fprintln(w, "No profiles found.")
			return nil
		}
		for _, e := range entries {
			running := "stopped"
			if e.Running {
				running = "running"
				if e.PID > 0 {
					running = fmt.Sprintf("running, pid %d", e.PID)
				}
			}
			_, _ = fmt.Fprintf(w, "%-20s %s (%s)\n", e.Name, e.Path, running)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
