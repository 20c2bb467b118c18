package replication

import (
	"fmt"

	"dosage/game"
)

// eventFor は受理された意図を送信するイベントに変換します。
// ターゲット選択待ちへの移行はローカルな状態なので送りません。
func eventFor(in game.Intent, prev, next game.State) (EventType, any, bool) {
	switch v := in.(type) {
	case game.StartGame:
		return EventGameStarted, GameStartedPayload{Players: v.Players, Seed: v.Seed}, true
	case game.SelectItem:
		return EventItemSelected, ItemSelectedPayload{ItemType: v.Item}, true
	case game.DeselectItem:
		return EventItemDeselected, ItemDeselectedPayload{ItemID: v.ItemID}, true
	case game.ConfirmSelection:
		return EventSelectionConfirmed, nil, true
	case game.ConsumePill:
		return EventPillConsumed, PillConsumedPayload{PillID: v.PillID}, true
	case game.UseItem:
		if next.Targeting != nil && next.Targeting.ItemID == v.ItemID {
			return "", nil, false
		}
		return EventItemUsed, ItemUsedPayload{ItemID: v.ItemID, Target: v.Target}, true
	case game.ChooseTarget:
		if prev.Targeting == nil {
			return "", nil, false
		}
		target := v.Target
		return EventItemUsed, ItemUsedPayload{ItemID: prev.Targeting.ItemID, Target: &target}, true
	case game.ToggleShopInterest:
		return EventWantsStoreToggled, nil, true
	case game.UpdateCart:
		return EventCartUpdated, CartUpdatedPayload{ItemType: v.Item, Remove: v.Remove}, true
	case game.ConfirmPurchase:
		return EventStoreConfirmed, nil, true
	}
	return "", nil, false
}

// intentFor は受信したイベントを送信者の意図に戻します。
func intentFor(env Envelope) (game.Intent, error) {
	at := env.Time()
	switch env.Type {
	case EventGameStarted:
		p, err := DecodePayload[GameStartedPayload](env)
		if err != nil {
			return nil, err
		}
		return game.StartGame{Players: p.Players, Seed: p.Seed, At: at}, nil
	case EventRoundReset:
		p, err := DecodePayload[RoundResetPayload](env)
		if err != nil {
			return nil, err
		}
		return p.Reset, nil
	case EventItemSelected:
		p, err := DecodePayload[ItemSelectedPayload](env)
		if err != nil {
			return nil, err
		}
		return game.SelectItem{PlayerID: env.PlayerID, Item: p.ItemType}, nil
	case EventItemDeselected:
		p, err := DecodePayload[ItemDeselectedPayload](env)
		if err != nil {
			return nil, err
		}
		return game.DeselectItem{PlayerID: env.PlayerID, ItemID: p.ItemID}, nil
	case EventSelectionConfirmed:
		return game.ConfirmSelection{PlayerID: env.PlayerID, At: at}, nil
	case EventPillConsumed:
		p, err := DecodePayload[PillConsumedPayload](env)
		if err != nil {
			return nil, err
		}
		return game.ConsumePill{PlayerID: env.PlayerID, PillID: p.PillID, At: at}, nil
	case EventItemUsed:
		p, err := DecodePayload[ItemUsedPayload](env)
		if err != nil {
			return nil, err
		}
		return game.UseItem{PlayerID: env.PlayerID, ItemID: p.ItemID, Target: p.Target, At: at}, nil
	case EventWantsStoreToggled:
		return game.ToggleShopInterest{PlayerID: env.PlayerID}, nil
	case EventCartUpdated:
		p, err := DecodePayload[CartUpdatedPayload](env)
		if err != nil {
			return nil, err
		}
		return game.UpdateCart{PlayerID: env.PlayerID, Item: p.ItemType, Remove: p.Remove}, nil
	case EventStoreConfirmed:
		return game.ConfirmPurchase{PlayerID: env.PlayerID, At: at}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
}
