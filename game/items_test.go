package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemState(t *testing.T, e *Engine, items ...ItemType) State {
	t.Helper()
	s := withPool(playingState(t, e, 3),
		pill("a", PillDamageHigh, "round"),
		pill("b", PillSafe, "oval"),
		pill("c", PillHeal, "round"),
		pill("d", PillSafe, "star"),
	)
	for i, it := range items {
		s = givePlayerItem(s, "p1", InventoryItem{ID: "i" + string(rune('0'+i)), Type: it})
	}
	return s
}

func TestUseItem_TargetSelectionFlow(t *testing.T) {
	e := newTestEngine(t)
	s := itemState(t, e, ItemScanner, ItemShield)

	s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0"})
	require.NotNil(t, s.Targeting)
	assert.Equal(t, TargetPill, s.Targeting.Target)

	_, err := e.Reduce(s, UseItem{PlayerID: "p1", ItemID: "i1"})
	assert.ErrorIs(t, err, ErrInvalidTransition, "awaiting target blocks other items")

	canceled := mustReduce(t, e, s, CancelTargeting{PlayerID: "p1"})
	assert.Nil(t, canceled.Targeting)
	p, _ := canceled.Player("p1")
	assert.Len(t, p.Inventory, 2, "cancel does not spend the item")

	s = mustReduce(t, e, s, ChooseTarget{PlayerID: "p1", Target: Target{PillID: "a"}})
	assert.Nil(t, s.Targeting)
	assert.True(t, s.Pool[0].KnownTo("p1"))
	assert.False(t, s.Pool[0].KnownTo("p2"))
	assert.False(t, s.Pool[0].Revealed)
	p, _ = s.Player("p1")
	assert.Len(t, p.Inventory, 1)
	assert.Equal(t, ActionItemUsed, s.History[len(s.History)-1].Kind)
	assert.Equal(t, "p1", s.CurrentTurn, "items do not end the turn")
}

func TestUseItem_PhaseChangeDropsTargeting(t *testing.T) {
	e := newTestEngine(t)
	s := itemState(t, e, ItemScanner)
	s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0"})
	require.NotNil(t, s.Targeting)

	s = mustReduce(t, e, s, ResetRound{})
	assert.Nil(t, s.Targeting)
}

func TestUseItem_ModifiersDoNotStack(t *testing.T) {
	e := newTestEngine(t)
	s := itemState(t, e, ItemInverter, ItemInverter, ItemDouble)

	s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PillID: "a"}})
	assert.True(t, s.Pool[0].Inverted)

	_, err := e.Reduce(s, UseItem{PlayerID: "p1", ItemID: "i1", Target: &Target{PillID: "a"}})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i2", Target: &Target{PillID: "a"}})
	assert.True(t, s.Pool[0].Doubled)

	s = mustReduce(t, e, s, ConsumePill{PlayerID: "p1", PillID: "a"})
	p, _ := s.Player("p1")
	assert.Equal(t, 6, p.Resistance, "inverted damage heals, capped at max")
}

func TestUseItem_ShieldAndPocketPill(t *testing.T) {
	e := newTestEngine(t)
	s := itemState(t, e, ItemShield, ItemShield, ItemPocketPill)
	s.player("p1").Resistance = 3

	s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0"})
	p, _ := s.Player("p1")
	assert.True(t, HasEffect(p.Effects, EffectShield))

	_, err := e.Reduce(s, UseItem{PlayerID: "p1", ItemID: "i1"})
	assert.ErrorIs(t, err, ErrInvalidTransition, "no duplicate shields")

	s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i2"})
	p, _ = s.Player("p1")
	assert.Equal(t, 5, p.Resistance)

	s = mustReduce(t, e, s, ConsumePill{PlayerID: "p1", PillID: "a"})
	p, _ = s.Player("p1")
	assert.Equal(t, 5, p.Resistance, "shield absorbs damage")
}

func TestUseItem_Handcuffs(t *testing.T) {
	e := newTestEngine(t)

	t.Run("restrains opponent", func(t *testing.T) {
		s := itemState(t, e, ItemHandcuffs)
		s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PlayerID: "p2"}})
		p2, _ := s.Player("p2")
		assert.True(t, HasEffect(p2.Effects, EffectRestrained))

		s = mustReduce(t, e, s, ConsumePill{PlayerID: "p1", PillID: "b"})
		assert.Equal(t, "p1", s.CurrentTurn)
	})
	t.Run("shielded opponent is immune", func(t *testing.T) {
		s := itemState(t, e, ItemHandcuffs)
		s.player("p2").Effects = []Effect{{Type: EffectShield, RoundsRemaining: 1}}
		s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PlayerID: "p2"}})
		p1, _ := s.Player("p1")
		p2, _ := s.Player("p2")
		assert.Empty(t, p1.Inventory, "item is still spent")
		assert.False(t, HasEffect(p2.Effects, EffectRestrained))
	})
	t.Run("cannot target self", func(t *testing.T) {
		s := itemState(t, e, ItemHandcuffs)
		_, err := e.Reduce(s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PlayerID: "p1"}})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestUseItem_ForceFeedKeepsTurn(t *testing.T) {
	e := newTestEngine(t)
	s := itemState(t, e, ItemForceFeed)

	s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PillID: "a"}})
	p2, _ := s.Player("p2")
	assert.Equal(t, 3, p2.Resistance)
	assert.Equal(t, "p1", s.CurrentTurn, "forced consumption does not advance the turn")
	assert.Len(t, s.Pool, 3)
	assert.Equal(t, ActionForcedConsumed, s.History[len(s.History)-1].Kind)
}

func TestUseItem_ChaosItems(t *testing.T) {
	e := newTestEngine(t)

	t.Run("discard", func(t *testing.T) {
		s := itemState(t, e, ItemDiscard)
		s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PillID: "a"}})
		assert.Len(t, s.Pool, 3)
		p, _ := s.Player("p1")
		assert.Equal(t, 6, p.Resistance)
		checkInvariants(t, s)
	})
	t.Run("shape bomb removes every match without quest progress", func(t *testing.T) {
		s := itemState(t, e, ItemShapeBomb)
		s.Quests["p1"] = ShapeQuest{ID: "q", Sequence: []Shape{"round", "round"}}
		s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PillID: "a"}})
		assert.Len(t, s.Pool, 2)
		assert.Zero(t, s.Counts.Shapes["round"])
		assert.Zero(t, s.Quests["p1"].Progress)
	})
	t.Run("shape scanner reveals every match", func(t *testing.T) {
		s := itemState(t, e, ItemShapeScanner)
		s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PillID: "c"}})
		assert.True(t, s.Pool[0].Revealed)
		assert.True(t, s.Pool[2].Revealed)
		assert.False(t, s.Pool[1].Revealed)
	})
	t.Run("shuffle keeps the same pills", func(t *testing.T) {
		s := itemState(t, e, ItemShuffle)
		before := map[string]bool{}
		for _, p := range s.Pool {
			before[p.ID] = true
		}
		s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0"})
		require.Len(t, s.Pool, 4)
		for _, p := range s.Pool {
			assert.True(t, before[p.ID])
		}
	})
	t.Run("discarding the last pill ends the round", func(t *testing.T) {
		s := withPool(itemState(t, e, ItemDiscard), pill("z", PillSafe, "oval"))
		s = mustReduce(t, e, s, UseItem{PlayerID: "p1", ItemID: "i0", Target: &Target{PillID: "z"}})
		assert.Equal(t, PhaseRoundEnding, s.Phase)
	})
}

func TestUseItem_OutOfTurn(t *testing.T) {
	e := newTestEngine(t)
	s := itemState(t, e)
	s = givePlayerItem(s, "p2", InventoryItem{ID: "x", Type: ItemShield})
	_, err := e.Reduce(s, UseItem{PlayerID: "p2", ItemID: "x"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEffectLedger(t *testing.T) {
	effects := AddEffect(nil, Effect{Type: EffectShield, RoundsRemaining: 1})
	effects = AddEffect(effects, Effect{Type: EffectRestrained, RoundsRemaining: 2})
	effects = AddEffect(effects, Effect{Type: EffectRestrained, RoundsRemaining: 1})
	require.Len(t, effects, 2)

	ticked := TickEffects(effects)
	assert.True(t, HasEffect(ticked, EffectShield))
	assert.False(t, HasEffect(ticked, EffectRestrained))
	assert.True(t, HasEffect(effects, EffectRestrained), "input is not modified")
}
