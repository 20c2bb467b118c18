package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"dosage/game"
	"dosage/game/balance"
	"dosage/internal/config"
	"dosage/internal/telemetry"
	"dosage/link"
)

// app はサブコマンドが共有する設定です。
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dosage",
		Short:        "Two-player pill roulette over a relay",
		Long:         "dosage runs the relay server, plays headless bot matches against a relay, and simulates local bot-vs-bot matches.",
		SilenceUsage: true,
	}

	cfg, err := config.Load()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	a := &app{cfg: cfg}

	rootCmd.PersistentFlags().StringVar(&a.cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&a.cfg.BalanceFile, "balance", cfg.BalanceFile, "TOML balance file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		a.logger = a.cfg.Logger()
		slog.SetDefault(a.logger)
		shutdown, err := telemetry.Setup(cmd.Context(), "dosage-"+cmd.Name(), a.cfg.OTelEndpoint)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		a.shutdown = shutdown
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if a.shutdown == nil {
			return nil
		}
		return a.shutdown(context.WithoutCancel(cmd.Context()))
	}

	rootCmd.AddCommand(
		newRelayCmd(a),
		newPlayCmd(a),
		newSimCmd(a),
		newCodeCmd(),
	)
	return rootCmd
}

func (a *app) engine() (*game.Engine, error) {
	cfg := balance.Default()
	if a.cfg.BalanceFile != "" {
		loaded, err := balance.Load(a.cfg.BalanceFile)
		if err != nil {
			return nil, fmt.Errorf("load balance: %w", err)
		}
		cfg = loaded
	}
	return game.NewEngine(cfg)
}

func (a *app) linkConfig() link.Config {
	return link.Config{
		Interval:        a.cfg.HeartbeatInterval,
		Misses:          a.cfg.HeartbeatMisses,
		ReconnectWindow: a.cfg.ReconnectWindow,
		Logger:          a.logger,
	}
}
