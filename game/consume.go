package game

import (
	"fmt"
	"slices"
	"time"
)

// Outcome はピル1個の効果量です。
type Outcome struct {
	Damage       int
	Heal         int
	LivesRestore int
}

// lifeInversionFactor は反転したLIFEピルのダメージ倍率です。
const lifeInversionFactor = 3

// ResolvePill は修飾とシールドを反映した効果量を求めます。
// 反転でダメージと回復が入れ替わり、倍化で2倍になり、シールドはダメージだけを0にします。
func ResolvePill(p Pill, shielded bool) Outcome {
	var out Outcome
	if p.Type == PillLife {
		if p.Inverted {
			out.Damage = lifeInversionFactor * p.LivesRestore
		} else {
			out.LivesRestore = p.LivesRestore
		}
	} else {
		out.Damage, out.Heal = p.Damage, p.Heal
		if p.Inverted {
			out.Damage, out.Heal = out.Heal, out.Damage
		}
	}
	if p.Doubled {
		out.Damage *= 2
		out.Heal *= 2
		out.LivesRestore *= 2
	}
	if shielded {
		out.Damage = 0
	}
	return out
}

// consume は playerID が pillID を消費したときの遷移です。
// forced の場合は手番を進めません。
func (e *Engine) consume(s *State, playerID, pillID string, forced bool, at time.Time) error {
	if s.Phase != PhasePlaying || len(s.Pool) == 0 {
		return fmt.Errorf("%w: no pill to consume", ErrInvalidTransition)
	}
	idx := s.pillIndex(pillID)
	if idx < 0 {
		return fmt.Errorf("%w: unknown pill %q", ErrInvalidTransition, pillID)
	}
	p := s.player(playerID)
	if p == nil || p.Eliminated() {
		return fmt.Errorf("%w: unknown player %q", ErrInvalidTransition, playerID)
	}

	s.Pool[idx].Revealed = true
	pill := s.Pool[idx]
	out := ResolvePill(pill, HasEffect(p.Effects, EffectShield))

	kind := ActionConsumed
	if forced {
		kind = ActionForcedConsumed
	}
	s.record(ActionRecord{Kind: kind, PlayerID: playerID, PillID: pill.ID, PillType: pill.Type, Amount: out.Damage - out.Heal, At: at})

	*p = p.GainLives(out.LivesRestore)
	var collapsed bool
	*p, collapsed = p.ApplyResistance(out.Damage, out.Heal)
	if collapsed {
		s.record(ActionRecord{Kind: ActionCollapsed, PlayerID: playerID, At: at})
	}

	// 脱落してもクエスト報酬は終了前に支払う
	if q, ok := s.Quests[playerID]; ok {
		next, completed := q.Advance(pill.Shape)
		s.Quests[playerID] = next
		if completed {
			reward := e.cfg.Quest.Reward
			p.Currency += reward
			s.record(ActionRecord{Kind: ActionQuestCompleted, PlayerID: playerID, Amount: reward, At: at})
		}
	}

	s.Pool = slices.Delete(s.Pool, idx, idx+1)
	s.Counts = recount(s.Pool)

	if !p.Eliminated() {
		p.Effects = TickEffects(p.Effects)
	}

	if p.Eliminated() {
		s.record(ActionRecord{Kind: ActionEliminated, PlayerID: playerID, At: at})
		if e.endIfDecided(s, at) {
			return nil
		}
		if s.CurrentTurn == playerID {
			e.passTurn(s, playerID, at)
		}
	} else if !forced {
		e.passTurn(s, playerID, at)
	}
	if s.Targeting != nil && s.Targeting.PlayerID == playerID {
		s.Targeting = nil
	}
	e.settle(s)
	return nil
}

// passTurn は from の次の生存プレイヤーに手番を渡します。
// 拘束されているプレイヤーは効果を解除して飛ばします。全員飛ばされた場合は from に残ります。
func (e *Engine) passTurn(s *State, from string, at time.Time) {
	n := len(s.Players)
	start := s.playerIndex(from)
	if start < 0 {
		return
	}
	for step := 1; step < n; step++ {
		cand := &s.Players[(start+step)%n]
		if cand.Eliminated() {
			continue
		}
		if HasEffect(cand.Effects, EffectRestrained) {
			cand.Effects = RemoveEffect(cand.Effects, EffectRestrained)
			s.record(ActionRecord{Kind: ActionTurnSkipped, PlayerID: cand.ID, At: at})
			continue
		}
		s.CurrentTurn = cand.ID
		return
	}
	if fromPlayer := s.player(from); fromPlayer != nil && !fromPlayer.Eliminated() {
		s.CurrentTurn = from
		return
	}
	if survivors := s.Survivors(); len(survivors) > 0 {
		s.CurrentTurn = survivors[0]
	}
}

// useItem はアイテムを使用します。対象が必要で未指定ならターゲット選択待ちに入ります。
func (e *Engine) useItem(s *State, playerID, itemID string, target *Target, at time.Time) error {
	if s.Phase != PhasePlaying || s.CurrentTurn != playerID {
		return fmt.Errorf("%w: item use out of turn", ErrInvalidTransition)
	}
	if s.Targeting != nil && s.Targeting.ItemID != itemID {
		return fmt.Errorf("%w: awaiting target for %s", ErrInvalidTransition, s.Targeting.ItemID)
	}
	p := s.player(playerID)
	if p == nil || p.Eliminated() {
		return fmt.Errorf("%w: unknown player %q", ErrInvalidTransition, playerID)
	}
	item, ok := p.Item(itemID)
	if !ok {
		return fmt.Errorf("%w: unknown item %q", ErrInvalidTransition, itemID)
	}
	def, ok := LookupItem(item.Type)
	if !ok {
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidTransition, item.Type)
	}

	if def.NeedsTarget() && target == nil {
		s.Targeting = &TargetSelection{PlayerID: playerID, ItemID: itemID, ItemType: item.Type, Target: def.Target}
		return nil
	}
	var t Target
	if target != nil {
		t = *target
	}

	deltas, err := e.ResolveItem(s, playerID, def, t)
	if err != nil {
		return err
	}

	*p, _, _ = p.RemoveItem(itemID)
	targetID := t.PillID
	if targetID == "" {
		targetID = t.PlayerID
	}
	s.record(ActionRecord{Kind: ActionItemUsed, PlayerID: playerID, ItemType: item.Type, TargetID: targetID, At: at})
	s.Targeting = nil

	for _, d := range deltas {
		if err := d.apply(e, s, at); err != nil {
			return err
		}
		if s.Phase == PhaseEnded {
			return nil
		}
	}
	e.settle(s)
	return nil
}
