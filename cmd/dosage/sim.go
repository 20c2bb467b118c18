package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dosage/client"
	"dosage/game"
	"dosage/link"
	"dosage/replication"
)

type simOptions struct {
	seed    uint64
	tail    int
	delay   time.Duration
	shop    time.Duration
	timeout time.Duration
}

func newSimCmd(a *app) *cobra.Command {
	var opts simOptions
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Simulate a local bot-vs-bot match",
		Long:  "sim runs a host and a guest bot in-process over an in-memory room channel and prints the winner and the end of the history.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSim(cmd, a, opts)
		},
	}
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "game seed (0 picks one)")
	cmd.Flags().IntVar(&opts.tail, "tail", 10, "history entries to print")
	cmd.Flags().DurationVar(&opts.delay, "delay", 2*time.Millisecond, "bot and round delay")
	cmd.Flags().DurationVar(&opts.shop, "shop", 50*time.Millisecond, "shop duration")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "abort the match after this long")
	return cmd
}

func runSim(cmd *cobra.Command, a *app, opts simOptions) error {
	engine, err := a.engine()
	if err != nil {
		return err
	}
	bus := replication.NewLocalBus()
	room := replication.Room{Code: replication.NewRoomCode()}

	newPeer := func(role replication.Role, name string) (*client.Peer, error) {
		id := uuid.NewString()
		return client.NewPeer(client.Config{
			Role:         role,
			Room:         room,
			Self:         game.PlayerSpec{ID: id, Name: name, IsAI: true},
			Engine:       engine,
			Dial:         client.BusDialer(bus, id),
			Bot:          game.NewRuleBotController(engine.Prices()),
			AutoStart:    true,
			Seed:         opts.seed,
			RoundDelay:   opts.delay,
			ShopDuration: opts.shop,
			BotDelay:     opts.delay,
			Link: link.Config{
				Interval:        50 * time.Millisecond,
				Misses:          3,
				ReconnectWindow: 5 * time.Second,
				Logger:          a.logger,
			},
			Logger: a.logger,
		})
	}
	host, err := newPeer(replication.RoleHost, "Alice")
	if err != nil {
		return err
	}
	guest, err := newPeer(replication.RoleGuest, "Bob")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return host.Run(ctx) })
	eg.Go(func() error { return guest.Run(ctx) })
	if err := eg.Wait(); err != nil {
		return err
	}
	if s := host.State(); s.Phase != game.PhaseEnded {
		return fmt.Errorf("match did not finish: phase %s after round %d", s.Phase, s.Round)
	}
	return printResult(cmd, host.Room(), host.View(opts.tail))
}
