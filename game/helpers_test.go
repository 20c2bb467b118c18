package game

import (
	"time"

	"github.com/stretchr/testify/require"

	"dosage/game/balance"
)

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// testingT は *testing.T と *rapid.T の共通部分です。
type testingT interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	FailNow()
}

func newTestEngine(t testingT) *Engine {
	t.Helper()
	e, err := NewEngine(balance.Default())
	require.NoError(t, err)
	return e
}

func twoPlayers() []PlayerSpec {
	return []PlayerSpec{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "Bob"},
	}
}

func mustReduce(t testingT, e *Engine, s State, in Intent) State {
	t.Helper()
	next, err := e.Reduce(s, in)
	require.NoError(t, err, "intent %s", in.IntentName())
	return next
}

// playingState は選択を終えて round 1 の playing に入った状態です。
func playingState(t testingT, e *Engine, seed uint64) State {
	t.Helper()
	s := mustReduce(t, e, NewState(), StartGame{Players: twoPlayers(), Seed: seed, At: testNow})
	s = mustReduce(t, e, s, ConfirmSelection{PlayerID: "p1", At: testNow})
	s = mustReduce(t, e, s, ConfirmSelection{PlayerID: "p2", At: testNow})
	require.Equal(t, PhasePlaying, s.Phase)
	return s
}

// withPool はプールを差し替えて集計を合わせます。
func withPool(s State, pool ...Pill) State {
	s.Pool = pool
	s.Counts = recount(pool)
	return s
}

func pill(id string, t PillType, shape Shape) Pill {
	p := Pill{ID: id, Type: t, Shape: shape}
	switch t {
	case PillDamageLow:
		p.Damage = 2
	case PillDamageHigh:
		p.Damage = 3
	case PillFatal:
		p.Damage = 99
	case PillHeal:
		p.Heal = 2
	case PillLife:
		p.LivesRestore = 1
	}
	return p
}

func givePlayerItem(s State, playerID string, items ...InventoryItem) State {
	p := s.player(playerID)
	p.Inventory = append(p.Inventory, items...)
	return s
}

func checkInvariants(t testingT, s State) {
	t.Helper()
	types, shapes := 0, 0
	for _, n := range s.Counts.Types {
		types += n
	}
	for _, n := range s.Counts.Shapes {
		shapes += n
	}
	if types != len(s.Pool) || shapes != len(s.Pool) {
		t.Fatalf("counts out of sync: types=%d shapes=%d pool=%d", types, shapes, len(s.Pool))
	}
	for _, p := range s.Players {
		if p.Resistance < 0 || p.Resistance > p.MaxResistance {
			t.Fatalf("player %s resistance %d out of [0,%d]", p.ID, p.Resistance, p.MaxResistance)
		}
		if p.Lives < 0 || p.Lives > p.MaxLives {
			t.Fatalf("player %s lives %d out of [0,%d]", p.ID, p.Lives, p.MaxLives)
		}
		if p.Eliminated() && p.Resistance != 0 {
			t.Fatalf("eliminated player %s keeps resistance %d", p.ID, p.Resistance)
		}
	}
	for id, q := range s.Quests {
		if q.Progress < 0 || q.Progress > len(q.Sequence) {
			t.Fatalf("quest %s progress %d out of range", id, q.Progress)
		}
	}
}
