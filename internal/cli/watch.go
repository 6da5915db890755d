package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/prodhub/internal/metrics"
	"github.com/sadopc/prodhub/internal/session"
)

func newWatchCmd(g *globals) *cobra.Command {
	var (
		metricsAddr  string
		syncInterval time.Duration
		retryAfter   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a session open, persisting progress and logging changes",
		Long: "watch follows every collection, writes derived project progress as tasks change " +
			"and optionally serves Prometheus metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, err := openApp(cmd, g, true)
			if err != nil {
				return err
			}
			defer a.close()

			addr := metricsAddr
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			if addr != "" {
				srv := serveMetrics(a, addr)
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(sctx)
				}()
			}

			a.log.Info().Str("owner", a.cfg.Owner).Msg("watching")
			return watchLoop(ctx, a, syncInterval, retryAfter)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&syncInterval, "sync-interval", 15*time.Minute, "Calendar refresh interval (0 disables)")
	cmd.Flags().DurationVar(&retryAfter, "retry-after", 5*time.Second, "Delay before resubscribing a failed collection (0 disables)")
	return cmd
}

func serveMetrics(a *app, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	a.log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

func watchLoop(ctx context.Context, a *app, syncInterval, retryAfter time.Duration) error {
	a.syncCalendar(ctx)

	var tick <-chan time.Time
	if syncInterval > 0 && a.cfg.Calendar.Token != "" {
		t := time.NewTicker(syncInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("stopped")
			return nil
		case <-a.done:
			return a.runErr
		case <-tick:
			a.syncCalendar(ctx)
		case ev := <-a.sess.Events():
			switch ev.Kind {
			case session.SnapshotApplied:
				a.log.Debug().Str("collection", string(ev.Collection)).Int("records", ev.Records).Msg("snapshot")
			case session.ProgressPersisted:
				a.log.Info().Str("project", ev.ProjectID).Int("progress", ev.Progress).Msg("progress saved")
			case session.NavigationReset:
				a.log.Info().Str("project", ev.ProjectID).Msg("selected project removed")
			case session.SubscriptionFailed:
				a.log.Error().Err(ev.Err).Str("collection", string(ev.Collection)).Msg("subscription failed")
				if retryAfter > 0 {
					c := ev.Collection
					time.AfterFunc(retryAfter, func() {
						if err := a.sess.Resubscribe(ctx, c); err != nil && ctx.Err() == nil {
							a.log.Error().Err(err).Str("collection", string(c)).Msg("resubscribe")
						}
					})
				}
			}
		}
	}
}
