package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dosage/server"
	"dosage/server/domain"
	"dosage/server/storage/sqlite"
)

const (
	pruneInterval = time.Minute
	roomTTL       = 10 * time.Minute
)

func newRelayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve the room relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&a.cfg.RelayAddr, "addr", a.cfg.RelayAddr, "listen address")
	cmd.Flags().StringVar(&a.cfg.DBPath, "db", a.cfg.DBPath, "sqlite match archive path")
	cmd.Flags().DurationVar(&a.cfg.IdleTimeout, "idle-timeout", a.cfg.IdleTimeout, "close sockets without reads for this long")
	return cmd
}

func runRelay(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := a.logger

	store, err := sqlite.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open match archive: %w", err)
	}
	defer store.Close()

	hub := domain.NewHub(domain.HubConfig{Archiver: store, Logger: logger})
	go hub.Run(ctx, pruneInterval, roomTTL)

	pubsub := domain.NewSimplePubSub(256)
	handler := server.Route(pubsub, hub, store, domain.EndpointConfig{
		IdleTimeout:  a.cfg.IdleTimeout,
		PingInterval: a.cfg.HeartbeatInterval,
	})
	s := server.NewServer(a.cfg.RelayAddr, handler)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.InfoContext(ctx, "relay listening", "addr", s.Addr(), "db", a.cfg.DBPath)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.InfoContext(ctx, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "graceful shutdown failed", "err", err)
		if err := s.Close(); err != nil {
			logger.ErrorContext(ctx, "forced close failed", "err", err)
		}
	}
	logger.InfoContext(ctx, "relay shutdown complete")
	return nil
}
