package game

import (
	"maps"
	"slices"
)

// Clone は共有しない深いコピーを返します。
func (s State) Clone() State {
	out := s
	out.Players = clonePlayers(s.Players)
	out.Pool = clonePool(s.Pool)
	out.Counts = Counts{
		Types:  maps.Clone(s.Counts.Types),
		Shapes: maps.Clone(s.Counts.Shapes),
	}
	if s.Quests != nil {
		out.Quests = make(map[string]ShapeQuest, len(s.Quests))
		for id, q := range s.Quests {
			q.Sequence = slices.Clone(q.Sequence)
			out.Quests[id] = q
		}
	}
	out.History = slices.Clone(s.History)
	if s.Targeting != nil {
		t := *s.Targeting
		out.Targeting = &t
	}
	out.Confirmed = maps.Clone(s.Confirmed)
	if s.Shop != nil {
		shop := *s.Shop
		shop.Participants = slices.Clone(s.Shop.Participants)
		shop.Confirmed = maps.Clone(s.Shop.Confirmed)
		if s.Shop.Carts != nil {
			shop.Carts = make(map[string][]ItemType, len(s.Shop.Carts))
			for id, cart := range s.Shop.Carts {
				shop.Carts[id] = slices.Clone(cart)
			}
		}
		out.Shop = &shop
	}
	return out
}

func clonePlayers(players []Player) []Player {
	if players == nil {
		return nil
	}
	out := make([]Player, len(players))
	for i, p := range players {
		p.Inventory = slices.Clone(p.Inventory)
		p.Effects = slices.Clone(p.Effects)
		if p.AccountID != nil {
			id := *p.AccountID
			p.AccountID = &id
		}
		out[i] = p
	}
	return out
}

func clonePool(pool []Pill) []Pill {
	if pool == nil {
		return nil
	}
	out := make([]Pill, len(pool))
	for i, p := range pool {
		p.PeekedBy = slices.Clone(p.PeekedBy)
		out[i] = p
	}
	return out
}
