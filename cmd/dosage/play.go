package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dosage/client"
	"dosage/game"
	"dosage/replication"
)

type playOptions struct {
	room     string
	name     string
	playerID string
	seed     uint64
	tail     int
}

func newPlayCmd(a *app) *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a headless bot match through the relay",
		Long:  "play joins the room given by --room as guest, or creates a new room and hosts it when no code is given.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&a.cfg.RelayURL, "relay", a.cfg.RelayURL, "relay base URL")
	cmd.Flags().StringVar(&opts.room, "room", "", "room code to join (XXX-XXX); empty creates a room")
	cmd.Flags().StringVar(&opts.name, "name", "bot", "display name")
	cmd.Flags().StringVar(&opts.playerID, "player", "", "player id (default: random)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "game seed when hosting (0 picks one)")
	cmd.Flags().IntVar(&opts.tail, "tail", 10, "history entries to print at the end")
	return cmd
}

func runPlay(cmd *cobra.Command, a *app, opts playOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := a.engine()
	if err != nil {
		return err
	}
	if opts.playerID == "" {
		opts.playerID = uuid.NewString()
	}

	role := replication.RoleGuest
	var room replication.Room
	if opts.room == "" {
		role = replication.RoleHost
		room, err = client.CreateRoom(ctx, a.cfg.RelayURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "room %s created, waiting for a guest\n", replication.FormatCode(room.Code))
	} else {
		code, err := replication.ParseCode(opts.room)
		if err != nil {
			return err
		}
		room = replication.Room{Code: code}
	}

	dial, err := client.WebSocketDialer(a.cfg.RelayURL, room.Code, opts.playerID, opts.name)
	if err != nil {
		return err
	}
	peer, err := client.NewPeer(client.Config{
		Role:         role,
		Room:         room,
		Self:         game.PlayerSpec{ID: opts.playerID, Name: opts.name, IsAI: true},
		Engine:       engine,
		Dial:         dial,
		Bot:          game.NewRuleBotController(engine.Prices()),
		AutoStart:    true,
		Seed:         opts.seed,
		RoundDelay:   a.cfg.RoundDelay,
		ShopDuration: a.cfg.ShopDuration,
		BotDelay:     a.cfg.BotDelay,
		Link:         a.linkConfig(),
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	unsubscribe := peer.Subscribe(func(prev, next game.State) {
		if next.Phase == game.PhaseItemSelection && prev.Phase != game.PhaseItemSelection {
			fmt.Fprintf(cmd.OutOrStdout(), "round %d: %d pills on the table\n", next.Round, len(next.Pool))
		}
	})
	defer unsubscribe()
	if err := peer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return printResult(cmd, peer.Room(), peer.View(opts.tail))
}

func printResult(cmd *cobra.Command, room replication.Room, view game.Snapshot) error {
	out := cmd.OutOrStdout()
	winner := view.Winner
	for _, p := range view.Players {
		if p.ID == view.Winner {
			winner = p.Name
		}
	}
	if _, err := fmt.Fprintf(out, "room %s %s after round %d, winner: %s\n", replication.FormatCode(room.Code), room.Status, view.Round, winner); err != nil {
		return err
	}
	for _, r := range view.History {
		line := fmt.Sprintf("  r%-2d %-16s %s", r.Round, r.Kind, r.PlayerID)
		switch {
		case r.PillType != "":
			line += fmt.Sprintf(" pill=%s", r.PillType)
		case r.ItemType != "":
			line += fmt.Sprintf(" item=%s", r.ItemType)
		}
		if r.TargetID != "" {
			line += " target=" + r.TargetID
		}
		if r.Amount != 0 {
			line += fmt.Sprintf(" amount=%d", r.Amount)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
