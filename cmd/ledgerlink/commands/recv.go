package commands

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"ledgerlink/internal/app"
	"ledgerlink/internal/crypto"
	"ledgerlink/internal/domain"
)

// recv: poll the mailbox once, advancing handshakes and printing payloads.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch queued messages once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			node, err := openNode(cmd.Context())
			if err != nil {
				return err
			}
			defer node.Close()

			msgs, err := node.Messages.Poll(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printMessages(msgs)
			reportUndeliverable(node)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max envelopes to fetch (0 for all)")
	return cmd
}

func printMessages(msgs []domain.DecryptedApplicationMessage) {
	for _, m := range msgs {
		if utf8.Valid(m.Payload) {
			fmt.Printf("[%s] %s\n", m.Source, string(m.Payload))
			continue
		}
		fmt.Printf("[%s] base64:%s\n", m.Source, crypto.B64(m.Payload))
	}
}

func reportUndeliverable(node *app.Node) {
	for _, u := range node.Messages.Undeliverable() {
		fmt.Printf("undeliverable %s to %s: %v\n", u.MessageID, u.Destination, u.Err)
	}
}
