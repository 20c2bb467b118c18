package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DispatchNotifiesListeners(t *testing.T) {
	st := NewStore(newTestEngine(t), nil)
	var phases []Phase
	unsubscribe := st.Subscribe(func(prev, next State) {
		phases = append(phases, next.Phase)
	})

	applied, err := st.Dispatch(context.Background(), StartGame{Players: twoPlayers(), Seed: 1})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []Phase{PhaseItemSelection}, phases)

	unsubscribe()
	_, err = st.Dispatch(context.Background(), ConfirmSelection{PlayerID: "p1"})
	require.NoError(t, err)
	assert.Len(t, phases, 1)
}

func TestStore_InvalidTransitionIsNoOp(t *testing.T) {
	st := NewStore(newTestEngine(t), nil)
	called := false
	st.Subscribe(func(prev, next State) { called = true })

	applied, err := st.Dispatch(context.Background(), ConsumePill{PlayerID: "p1", PillID: "x"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, called)
	assert.Equal(t, NewState(), st.State())
}

func TestStore_NoticeIsReturned(t *testing.T) {
	st := NewStore(newTestEngine(t), nil)
	ctx := context.Background()
	_, err := st.Dispatch(ctx, StartGame{Players: twoPlayers(), Seed: 1})
	require.NoError(t, err)
	for range 5 {
		_, err = st.Dispatch(ctx, SelectItem{PlayerID: "p1", Item: ItemShield})
		require.NoError(t, err)
	}

	applied, err := st.Dispatch(ctx, SelectItem{PlayerID: "p1", Item: ItemShield})
	assert.False(t, applied)
	assert.ErrorIs(t, err, ErrInventoryFull)
}

func TestStore_ReplaceOverwritesWholesale(t *testing.T) {
	e := newTestEngine(t)
	guest := NewStore(e, nil)
	ctx := context.Background()
	_, err := guest.Dispatch(ctx, StartGame{Players: twoPlayers(), Seed: 5})
	require.NoError(t, err)
	local := guest.State()
	local.Round = 3
	guest.Replace(ctx, local)

	host := playingState(t, e, 99)
	host.Round = 5
	host.player("p2").Currency = 4

	var seen State
	guest.Subscribe(func(prev, next State) { seen = next })
	guest.Replace(ctx, host)

	got := guest.State()
	assert.Equal(t, host, got)
	assert.Equal(t, 5, got.Round)
	assert.Equal(t, PhasePlaying, got.Phase)
	assert.Equal(t, host, seen)
}

func TestStore_StateIsACopy(t *testing.T) {
	st := NewStore(newTestEngine(t), nil)
	_, err := st.Dispatch(context.Background(), StartGame{Players: twoPlayers(), Seed: 1})
	require.NoError(t, err)

	s := st.State()
	s.Players[0].Lives = 0
	s.Pool[0].Revealed = true

	again := st.State()
	assert.Equal(t, 3, again.Players[0].Lives)
	assert.False(t, again.Pool[0].Revealed)
}

func TestSnapshot_HidesUnknownPillsAndTrimsHistory(t *testing.T) {
	e := newTestEngine(t)
	s := playingState(t, e, 3)
	peeked := pill("b", PillFatal, "star")
	peeked.PeekedBy = []string{"p1"}
	revealed := pill("c", PillHeal, "oval")
	revealed.Revealed = true
	s = withPool(s, pill("a", PillSafe, "round"), peeked, revealed)
	s.History = []ActionRecord{
		{Kind: ActionGameStarted, Round: 1},
		{Kind: ActionConsumed, Round: 1, PlayerID: "p1", PillID: "z"},
	}

	snap := s.Snapshot("p2", 1)
	require.Len(t, snap.Pool, 3)
	assert.Empty(t, snap.Pool[0].Type)
	assert.Empty(t, snap.Pool[1].Type, "peek by another player stays hidden")
	assert.Equal(t, PillHeal, snap.Pool[2].Type)
	assert.Equal(t, 3, snap.Counts.Shapes["round"]+snap.Counts.Shapes["star"]+snap.Counts.Shapes["oval"])
	require.Len(t, snap.History, 1)
	assert.Equal(t, ActionConsumed, snap.History[0].Kind)

	mine := s.Snapshot("p1", -1)
	assert.Equal(t, PillFatal, mine.Pool[1].Type)
	assert.Len(t, mine.History, 2)
	for _, p := range mine.Players {
		assert.Equal(t, p.ID == s.CurrentTurn, p.IsTurn)
	}
}
