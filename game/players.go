package game

import (
	"slices"

	"dosage/game/balance"
)

// PlayerSpec は参加者の入力です。
type PlayerSpec struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AccountID *string `json:"accountId,omitempty"`
	IsAI      bool    `json:"isAI"`
}

// NewPlayer は spec と設定から初期状態のプレイヤーを生成します。
func NewPlayer(spec PlayerSpec, cfg balance.PlayerConfig) Player {
	return Player{
		ID:            spec.ID,
		Name:          spec.Name,
		AccountID:     spec.AccountID,
		Lives:         cfg.Lives,
		MaxLives:      cfg.Lives,
		Resistance:    cfg.Resistance,
		MaxResistance: cfg.Resistance,
		IsAI:          spec.IsAI,
		Inventory:     []InventoryItem{},
		Effects:       []Effect{},
		Currency:      cfg.Currency,
	}
}

// ApplyResistance は回復の後にダメージを適用します。
// resistance が0以下になると倒れ、ライフを1失って resistance が最大に戻ります。
// ライフが尽きた場合は脱落し resistance は0になります。
func (p Player) ApplyResistance(damage, heal int) (Player, bool) {
	if p.Eliminated() {
		return p, false
	}
	r := min(p.Resistance+heal, p.MaxResistance)
	r -= damage
	if r > 0 {
		p.Resistance = r
		return p, false
	}
	p.Lives--
	if p.Lives <= 0 {
		p.Lives = 0
		p.Resistance = 0
	} else {
		p.Resistance = p.MaxResistance
	}
	return p, true
}

func (p Player) GainLives(n int) Player {
	if p.Eliminated() || n <= 0 {
		return p
	}
	p.Lives = min(p.Lives+n, p.MaxLives)
	return p
}

func (p Player) Credit(n int) Player {
	if p.Eliminated() || n <= 0 {
		return p
	}
	p.Currency += n
	return p
}

// AddItem は容量を超える場合 ErrInventoryFull を返します。
func (p Player) AddItem(item InventoryItem, capacity int) (Player, error) {
	if len(p.Inventory) >= capacity {
		return p, ErrInventoryFull
	}
	p.Inventory = append(slices.Clone(p.Inventory), item)
	return p, nil
}

func (p Player) RemoveItem(id string) (Player, InventoryItem, bool) {
	i := slices.IndexFunc(p.Inventory, func(it InventoryItem) bool { return it.ID == id })
	if i < 0 {
		return p, InventoryItem{}, false
	}
	item := p.Inventory[i]
	p.Inventory = slices.Delete(slices.Clone(p.Inventory), i, i+1)
	return p, item, true
}

func (p Player) Item(id string) (InventoryItem, bool) {
	for _, it := range p.Inventory {
		if it.ID == id {
			return it, true
		}
	}
	return InventoryItem{}, false
}
