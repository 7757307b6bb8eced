package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// send: queue a message and post everything that became sendable.
func sendCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a message to a peer identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			node, err := openNode(cmd.Context())
			if err != nil {
				return err
			}
			defer node.Close()

			peer, err := parsePeer(to, node.Local.Identity)
			if err != nil {
				return err
			}
			id, err := node.Messages.Send(cmd.Context(), peer, []byte(args[0]))
			if err != nil {
				return err
			}
			if n := node.Sessions.PendingCount(peer); n > 0 {
				fmt.Printf("Queued %s for %s; %d waiting for the handshake. Run listen to complete it.\n", id, peer, n)
				return nil
			}
			fmt.Printf("Sent %s to %s.\n", id, peer)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient as \"<x500 name>@<group>\"")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
