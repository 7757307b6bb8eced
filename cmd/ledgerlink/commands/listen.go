package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"ledgerlink/internal/app"
	"ledgerlink/internal/metrics"
)

// listen: poll the mailbox until interrupted so handshakes complete and
// messages arrive without manual recv calls.
func listenCmd() *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Poll the relay continuously and print incoming messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRelay(); err != nil {
				return err
			}
			ctx := cmd.Context()
			node, err := openNode(ctx)
			if err != nil {
				return err
			}
			defer node.Close()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: inspectRouter(node), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server stopped")
					}
				}()
				defer srv.Shutdown(context.Background())
				logger.Info().Str("addr", metricsAddr).Msg("serving /metrics and /sessions")
			}

			logger.Info().Str("identity", node.Local.Identity.String()).Dur("interval", interval).Msg("listening")
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if _, err := node.Messages.Flush(ctx); err != nil {
					logger.Warn().Err(err).Msg("flush failed")
				}
				msgs, err := node.Messages.Poll(ctx, 0)
				if err != nil && ctx.Err() == nil {
					logger.Warn().Err(err).Msg("poll failed")
				}
				printMessages(msgs)
				if n := node.Sessions.Sweep(ctx); n > 0 {
					logger.Info().Int("sessions", n).Msg("swept sessions")
				}
				reportUndeliverable(node)

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "mailbox poll interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /sessions on this address")
	return cmd
}

type sessionView struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Peer      string    `json:"peer"`
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Mode      string    `json:"mode,omitempty"`
	Epoch     uint32    `json:"epoch"`
	Pending   int       `json:"pending"`
	LastSend  time.Time `json:"last_send"`
	Expiry    time.Time `json:"expiry"`
}

func sessionViews(node *app.Node) []sessionView {
	infos := node.Sessions.Sessions()
	out := make([]sessionView, 0, len(infos))
	for _, s := range infos {
		v := sessionView{
			SessionID: s.SessionID.String(),
			Role:      s.Role.String(),
			Peer:      s.Peer.String(),
			Status:    s.Status.String(),
			State:     s.State,
			Epoch:     s.Epoch,
			Pending:   s.Pending,
			LastSend:  s.LastSend,
			Expiry:    s.Expiry,
		}
		if s.Mode != 0 {
			v.Mode = s.Mode.String()
		}
		out = append(out, v)
	}
	return out
}

func inspectRouter(node *app.Node) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler(node.Registry)).Methods("GET")
	r.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessionViews(node))
	}).Methods("GET")
	return r
}
