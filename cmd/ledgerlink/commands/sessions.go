package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions restored from disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := openNode(cmd.Context())
			if err != nil {
				return err
			}
			defer node.Close()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tROLE\tPEER\tSTATUS\tMODE\tEPOCH\tEXPIRES")
			for _, s := range sessionViews(node) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					s.SessionID, s.Role, s.Peer, s.Status, s.Mode, s.Epoch, s.Expiry.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening already drops expired and interrupted sessions from disk.
			node, err := openNode(cmd.Context())
			if err != nil {
				return err
			}
			defer node.Close()
			n := node.Sessions.Sweep(cmd.Context())
			fmt.Printf("%d sessions kept, %d pruned.\n", len(node.Sessions.Sessions()), n)
			return nil
		},
	})
	return cmd
}
