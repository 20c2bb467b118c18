package game

import (
	"fmt"
	"slices"
	"time"
)

type ItemType string

const (
	ItemScanner      ItemType = "scanner"
	ItemInverter     ItemType = "inverter"
	ItemDouble       ItemType = "double"
	ItemPocketPill   ItemType = "pocket_pill"
	ItemShield       ItemType = "shield"
	ItemHandcuffs    ItemType = "handcuffs"
	ItemForceFeed    ItemType = "force_feed"
	ItemShuffle      ItemType = "shuffle"
	ItemDiscard      ItemType = "discard"
	ItemShapeBomb    ItemType = "shape_bomb"
	ItemShapeScanner ItemType = "shape_scanner"
)

type Category string

const (
	CategoryIntel   Category = "intel"
	CategorySustain Category = "sustain"
	CategoryControl Category = "control"
	CategoryChaos   Category = "chaos"
)

// TargetKind はアイテムが要求する対象です。
type TargetKind string

const (
	TargetSelf      TargetKind = "self"
	TargetPill      TargetKind = "pill"
	TargetOpponent  TargetKind = "opponent"
	TargetPillForce TargetKind = "pill_force"
	TargetTable     TargetKind = "table"
)

type ItemDef struct {
	Type     ItemType
	Category Category
	Target   TargetKind
}

// NeedsTarget は使用時にターゲット選択が必要かどうかです。
func (d ItemDef) NeedsTarget() bool {
	switch d.Target {
	case TargetPill, TargetOpponent, TargetPillForce:
		return true
	}
	return false
}

var itemCatalog = []ItemDef{
	{Type: ItemScanner, Category: CategoryIntel, Target: TargetPill},
	{Type: ItemInverter, Category: CategoryIntel, Target: TargetPill},
	{Type: ItemDouble, Category: CategoryIntel, Target: TargetPill},
	{Type: ItemPocketPill, Category: CategorySustain, Target: TargetSelf},
	{Type: ItemShield, Category: CategorySustain, Target: TargetSelf},
	{Type: ItemHandcuffs, Category: CategoryControl, Target: TargetOpponent},
	{Type: ItemForceFeed, Category: CategoryControl, Target: TargetPillForce},
	{Type: ItemShuffle, Category: CategoryChaos, Target: TargetTable},
	{Type: ItemDiscard, Category: CategoryChaos, Target: TargetPill},
	{Type: ItemShapeBomb, Category: CategoryChaos, Target: TargetPill},
	{Type: ItemShapeScanner, Category: CategoryChaos, Target: TargetPill},
}

const pocketPillHeal = 2

func LookupItem(t ItemType) (ItemDef, bool) {
	for _, d := range itemCatalog {
		if d.Type == t {
			return d, true
		}
	}
	return ItemDef{}, false
}

// Items はカタログを定義順で返します。
func Items() []ItemDef {
	return slices.Clone(itemCatalog)
}

// Target はアイテムの対象です。種類に応じてどちらかを使います。
type Target struct {
	PillID   string `json:"pillId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// Delta はアイテム効果による状態変化の記述です。
// ResolveItem が生成し、Engine が順に適用します。
type Delta interface {
	apply(e *Engine, s *State, at time.Time) error
}

// PeekPill は playerID だけにピルの種別を見せます。
type PeekPill struct {
	PlayerID string
	PillID   string
}

// ModifyPill はピルに修飾を付けます。
type ModifyPill struct {
	PillID string
	Invert bool
	Double bool
}

type HealPlayer struct {
	PlayerID string
	Amount   int
}

type GrantEffect struct {
	PlayerID string
	Effect   Effect
}

// RemovePills は効果なしでピルを取り除きます。消費ではないのでクエストは進みません。
type RemovePills struct {
	PillIDs []string
}

// RevealPills は全員にピルを公開します。
type RevealPills struct {
	PillIDs []string
}

type ReorderPool struct {
	Order []string
}

// ForceConsume は PlayerID に強制的にピルを消費させます。手番は進みません。
type ForceConsume struct {
	PlayerID string
	PillID   string
}

func (d PeekPill) apply(_ *Engine, s *State, _ time.Time) error {
	i := s.pillIndex(d.PillID)
	if i < 0 {
		return fmt.Errorf("%w: unknown pill %s", ErrInvalidTransition, d.PillID)
	}
	if !slices.Contains(s.Pool[i].PeekedBy, d.PlayerID) {
		s.Pool[i].PeekedBy = append(s.Pool[i].PeekedBy, d.PlayerID)
	}
	return nil
}

func (d ModifyPill) apply(_ *Engine, s *State, _ time.Time) error {
	i := s.pillIndex(d.PillID)
	if i < 0 {
		return fmt.Errorf("%w: unknown pill %s", ErrInvalidTransition, d.PillID)
	}
	if d.Invert {
		s.Pool[i].Inverted = true
	}
	if d.Double {
		s.Pool[i].Doubled = true
	}
	return nil
}

func (d HealPlayer) apply(_ *Engine, s *State, _ time.Time) error {
	p := s.player(d.PlayerID)
	if p == nil {
		return fmt.Errorf("%w: unknown player %s", ErrInvalidTransition, d.PlayerID)
	}
	*p, _ = p.ApplyResistance(0, d.Amount)
	return nil
}

func (d GrantEffect) apply(_ *Engine, s *State, _ time.Time) error {
	p := s.player(d.PlayerID)
	if p == nil {
		return fmt.Errorf("%w: unknown player %s", ErrInvalidTransition, d.PlayerID)
	}
	p.Effects = AddEffect(p.Effects, d.Effect)
	return nil
}

func (d RemovePills) apply(_ *Engine, s *State, _ time.Time) error {
	s.Pool = slices.DeleteFunc(s.Pool, func(p Pill) bool {
		return slices.Contains(d.PillIDs, p.ID)
	})
	return nil
}

func (d RevealPills) apply(_ *Engine, s *State, _ time.Time) error {
	for i := range s.Pool {
		if slices.Contains(d.PillIDs, s.Pool[i].ID) {
			s.Pool[i].Revealed = true
		}
	}
	return nil
}

func (d ReorderPool) apply(_ *Engine, s *State, _ time.Time) error {
	if len(d.Order) != len(s.Pool) {
		return fmt.Errorf("%w: reorder size mismatch", ErrInvalidTransition)
	}
	byID := make(map[string]Pill, len(s.Pool))
	for _, p := range s.Pool {
		byID[p.ID] = p
	}
	pool := make([]Pill, 0, len(d.Order))
	for _, id := range d.Order {
		p, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown pill %s", ErrInvalidTransition, id)
		}
		pool = append(pool, p)
	}
	s.Pool = pool
	return nil
}

func (d ForceConsume) apply(e *Engine, s *State, at time.Time) error {
	return e.consume(s, d.PlayerID, d.PillID, true, at)
}

// ResolveItem は user が def を target に使ったときの Delta 列を求めます。
// 検証に失敗した場合は ErrInvalidTransition を返し、アイテムは消費されません。
func (e *Engine) ResolveItem(s *State, user string, def ItemDef, target Target) ([]Delta, error) {
	var pill Pill
	if def.Target == TargetPill || def.Target == TargetPillForce {
		i := s.pillIndex(target.PillID)
		if i < 0 {
			return nil, fmt.Errorf("%w: unknown pill %q", ErrInvalidTransition, target.PillID)
		}
		pill = s.Pool[i]
	}

	switch def.Type {
	case ItemScanner:
		return []Delta{PeekPill{PlayerID: user, PillID: pill.ID}}, nil
	case ItemInverter:
		if pill.Inverted {
			return nil, fmt.Errorf("%w: pill already inverted", ErrInvalidTransition)
		}
		return []Delta{ModifyPill{PillID: pill.ID, Invert: true}}, nil
	case ItemDouble:
		if pill.Doubled {
			return nil, fmt.Errorf("%w: pill already doubled", ErrInvalidTransition)
		}
		return []Delta{ModifyPill{PillID: pill.ID, Double: true}}, nil
	case ItemPocketPill:
		return []Delta{HealPlayer{PlayerID: user, Amount: pocketPillHeal}}, nil
	case ItemShield:
		p, _ := s.Player(user)
		if HasEffect(p.Effects, EffectShield) {
			return nil, fmt.Errorf("%w: already shielded", ErrInvalidTransition)
		}
		return []Delta{GrantEffect{PlayerID: user, Effect: Effect{Type: EffectShield, RoundsRemaining: 1}}}, nil
	case ItemHandcuffs:
		opp, err := opponentOf(s, user, target.PlayerID)
		if err != nil {
			return nil, err
		}
		if HasEffect(opp.Effects, EffectShield) {
			return nil, nil
		}
		return []Delta{GrantEffect{PlayerID: opp.ID, Effect: Effect{Type: EffectRestrained, RoundsRemaining: 1}}}, nil
	case ItemForceFeed:
		opp, err := opponentOf(s, user, target.PlayerID)
		if err != nil {
			return nil, err
		}
		return []Delta{ForceConsume{PlayerID: opp.ID, PillID: pill.ID}}, nil
	case ItemShuffle:
		order := make([]string, len(s.Pool))
		for i, p := range s.Pool {
			order[i] = p.ID
		}
		s.rng().Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		return []Delta{ReorderPool{Order: order}}, nil
	case ItemDiscard:
		return []Delta{RemovePills{PillIDs: []string{pill.ID}}}, nil
	case ItemShapeBomb:
		return []Delta{RemovePills{PillIDs: pillsWithShape(s.Pool, pill.Shape)}}, nil
	case ItemShapeScanner:
		return []Delta{RevealPills{PillIDs: pillsWithShape(s.Pool, pill.Shape)}}, nil
	}
	return nil, fmt.Errorf("%w: unknown item %q", ErrInvalidTransition, def.Type)
}

func opponentOf(s *State, user, requested string) (Player, error) {
	if requested != "" {
		if requested == user {
			return Player{}, fmt.Errorf("%w: cannot target self", ErrInvalidTransition)
		}
		p, ok := s.Player(requested)
		if !ok || p.Eliminated() {
			return Player{}, fmt.Errorf("%w: unknown opponent %q", ErrInvalidTransition, requested)
		}
		return p, nil
	}
	opps := s.Opponents(user)
	if len(opps) != 1 {
		return Player{}, fmt.Errorf("%w: opponent must be chosen", ErrInvalidTransition)
	}
	p, _ := s.Player(opps[0])
	return p, nil
}

func pillsWithShape(pool []Pill, shape Shape) []string {
	var ids []string
	for _, p := range pool {
		if p.Shape == shape {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
