package game

import (
	"fmt"
	"time"

	"dosage/game/balance"
)

// Engine はバランス設定を束ねた状態遷移関数です。状態は保持しません。
type Engine struct {
	cfg balance.Config
}

func NewEngine(cfg balance.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Balance() balance.Config {
	return e.cfg
}

// Prices はショップの価格表です。ボットの判断に使います。
func (e *Engine) Prices() map[ItemType]int {
	prices := make(map[ItemType]int, len(e.cfg.Shop.Prices))
	for item, price := range e.cfg.Shop.Prices {
		prices[ItemType(item)] = price
	}
	return prices
}

// Reduce は s に in を適用した次の状態を返します。
// エラー時は s をそのまま返し、部分的な変更は残りません。
func (e *Engine) Reduce(s State, in Intent) (State, error) {
	next := s.Clone()
	if err := e.apply(&next, in); err != nil {
		return s, err
	}
	return next, nil
}

func (e *Engine) apply(s *State, in Intent) error {
	switch in := in.(type) {
	case StartGame:
		return e.startGame(s, in)
	case SelectItem:
		return e.selectItem(s, in)
	case DeselectItem:
		return e.deselectItem(s, in)
	case ConfirmSelection:
		return e.confirmSelection(s, in)
	case ConsumePill:
		if s.Phase != PhasePlaying || in.PlayerID != s.CurrentTurn {
			return fmt.Errorf("%w: consume out of turn", ErrInvalidTransition)
		}
		return e.consume(s, in.PlayerID, in.PillID, false, in.At)
	case UseItem:
		return e.useItem(s, in.PlayerID, in.ItemID, in.Target, in.At)
	case ChooseTarget:
		if s.Targeting == nil || s.Targeting.PlayerID != in.PlayerID {
			return fmt.Errorf("%w: no pending target selection", ErrInvalidTransition)
		}
		target := in.Target
		return e.useItem(s, in.PlayerID, s.Targeting.ItemID, &target, in.At)
	case CancelTargeting:
		if s.Targeting == nil || s.Targeting.PlayerID != in.PlayerID {
			return fmt.Errorf("%w: no pending target selection", ErrInvalidTransition)
		}
		s.Targeting = nil
		return nil
	case ToggleShopInterest:
		return e.toggleShopInterest(s, in)
	case UpdateCart:
		return e.updateCart(s, in)
	case ConfirmPurchase:
		return e.confirmPurchase(s, in)
	case FinishRound:
		return e.finishRound(s, in.At)
	case CloseShop:
		return e.closeShop(s, in.At)
	case ResetRound:
		return e.resetRound(s, in.At)
	case ResetGame:
		*s = NewState()
		return nil
	case RoundReset:
		return e.applyRoundReset(s, in)
	}
	return fmt.Errorf("%w: %T", ErrUnknownIntent, in)
}

// settle はプールの変化後に集計を更新し、空になっていればラウンド終了に遷移します。
func (e *Engine) settle(s *State) {
	s.Counts = recount(s.Pool)
	if s.Phase == PhasePlaying && len(s.Pool) == 0 {
		s.Phase = PhaseRoundEnding
		s.Targeting = nil
	}
}

// endIfDecided は生存者が1人以下になったらゲームを終了します。
func (e *Engine) endIfDecided(s *State, at time.Time) bool {
	survivors := s.Survivors()
	if len(survivors) > 1 {
		return false
	}
	s.Phase = PhaseEnded
	s.Targeting = nil
	s.Shop = nil
	if len(survivors) == 1 {
		s.Winner = survivors[0]
	}
	s.record(ActionRecord{Kind: ActionGameEnded, PlayerID: s.Winner, At: at})
	return true
}
