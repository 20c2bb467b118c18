// Package game はセッション状態機械とその構成要素です。
// 状態の変更は全て Engine.Reduce を通した純粋な遷移として表現します。
package game

import "time"

type PillType string

const (
	PillSafe       PillType = "SAFE"
	PillDamageLow  PillType = "DMG_LOW"
	PillDamageHigh PillType = "DMG_HIGH"
	PillFatal      PillType = "FATAL"
	PillHeal       PillType = "HEAL"
	PillLife       PillType = "LIFE"
)

type Shape string

type Phase string

const (
	PhaseSetup         Phase = "setup"
	PhaseItemSelection Phase = "itemSelection"
	PhasePlaying       Phase = "playing"
	PhaseRoundEnding   Phase = "roundEnding"
	PhaseShopping      Phase = "shopping"
	PhaseEnded         Phase = "ended"
)

type EffectType string

const (
	EffectShield     EffectType = "shield"
	EffectRestrained EffectType = "restrained"
)

// Effect はプレイヤーに付与された時限効果です。
type Effect struct {
	Type            EffectType `json:"type"`
	RoundsRemaining int        `json:"roundsRemaining"`
}

type InventoryItem struct {
	ID   string   `json:"id"`
	Type ItemType `json:"type"`
}

type Player struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	AccountID     *string         `json:"accountId"`
	Lives         int             `json:"lives"`
	MaxLives      int             `json:"maxLives"`
	Resistance    int             `json:"resistance"`
	MaxResistance int             `json:"maxResistance"`
	IsAI          bool            `json:"isAI"`
	Inventory     []InventoryItem `json:"inventory"`
	Effects       []Effect        `json:"effects"`
	Currency      int             `json:"currency"`
	WantsStore    bool            `json:"wantsStore"`
	// Minted はこのプレイヤーに発行したアイテムの数です。
	Minted int `json:"minted"`
}

// Eliminated は lives が尽きたかどうかです。脱落したプレイヤーは以後変更されません。
func (p Player) Eliminated() bool {
	return p.Lives <= 0
}

type Pill struct {
	ID           string   `json:"id"`
	Type         PillType `json:"type"`
	Shape        Shape    `json:"shape"`
	Revealed     bool     `json:"revealed"`
	PeekedBy     []string `json:"peekedBy,omitempty"`
	Damage       int      `json:"damage"`
	Heal         int      `json:"heal"`
	LivesRestore int      `json:"livesRestore"`
	Inverted     bool     `json:"inverted"`
	Doubled      bool     `json:"doubled"`
}

// KnownTo は playerID がこのピルの種別を知っているかどうかです。
func (p Pill) KnownTo(playerID string) bool {
	if p.Revealed {
		return true
	}
	for _, id := range p.PeekedBy {
		if id == playerID {
			return true
		}
	}
	return false
}

type ShapeQuest struct {
	ID        string  `json:"id"`
	Sequence  []Shape `json:"sequence"`
	Progress  int     `json:"progress"`
	Completed bool    `json:"completed"`
}

// Counts はプールの公開集計です。個々のピルの識別は含みません。
type Counts struct {
	Types  map[PillType]int `json:"types"`
	Shapes map[Shape]int    `json:"shapes"`
}

// TargetSelection はターゲット選択待ちのアイテム使用です。
type TargetSelection struct {
	PlayerID string     `json:"playerId"`
	ItemID   string     `json:"itemId"`
	ItemType ItemType   `json:"itemType"`
	Target   TargetKind `json:"target"`
}

type ShopState struct {
	Participants []string              `json:"participants"`
	Carts        map[string][]ItemType `json:"carts"`
	Confirmed    map[string]bool       `json:"confirmed"`
	OpenedAt     time.Time             `json:"openedAt"`
}

type ActionKind string

const (
	ActionGameStarted    ActionKind = "game_started"
	ActionRoundStarted   ActionKind = "round_started"
	ActionConsumed       ActionKind = "pill_consumed"
	ActionForcedConsumed ActionKind = "pill_forced"
	ActionItemUsed       ActionKind = "item_used"
	ActionCollapsed      ActionKind = "collapsed"
	ActionEliminated     ActionKind = "eliminated"
	ActionQuestCompleted ActionKind = "quest_completed"
	ActionTurnSkipped    ActionKind = "turn_skipped"
	ActionPurchased      ActionKind = "purchased"
	ActionGameEnded      ActionKind = "game_ended"
)

// ActionRecord は追記専用の行動履歴です。
type ActionRecord struct {
	Kind     ActionKind `json:"kind"`
	Round    int        `json:"round"`
	PlayerID string     `json:"playerId,omitempty"`
	PillID   string     `json:"pillId,omitempty"`
	PillType PillType   `json:"pillType,omitempty"`
	ItemType ItemType   `json:"itemType,omitempty"`
	TargetID string     `json:"targetId,omitempty"`
	Amount   int        `json:"amount,omitempty"`
	At       time.Time  `json:"at"`
}

// State はセッションの唯一の集約です。
type State struct {
	Phase       Phase                 `json:"phase"`
	Round       int                   `json:"round"`
	CurrentTurn string                `json:"currentTurn"`
	Players     []Player              `json:"players"`
	Pool        []Pill                `json:"pool"`
	Counts      Counts                `json:"counts"`
	Quests      map[string]ShapeQuest `json:"quests"`
	Winner      string                `json:"winner,omitempty"`
	History     []ActionRecord        `json:"history"`
	Targeting   *TargetSelection      `json:"targeting,omitempty"`
	Confirmed   map[string]bool       `json:"confirmed,omitempty"`
	Shop        *ShopState            `json:"shop,omitempty"`
	Seed        uint64                `json:"seed"`
	Nonce       uint64                `json:"nonce"`
}

// NewState は setup フェーズの空の状態です。
func NewState() State {
	return State{Phase: PhaseSetup}
}

// Player は id のプレイヤーを返します。
func (s State) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

func (s *State) player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s State) playerIndex(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s State) pillIndex(id string) int {
	for i, p := range s.Pool {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Survivors は脱落していないプレイヤーのIDを席順で返します。
func (s State) Survivors() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.Eliminated() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Opponents は playerID 以外の生存プレイヤーです。
func (s State) Opponents(playerID string) []string {
	ids := make([]string, 0, len(s.Players))
	for _, id := range s.Survivors() {
		if id != playerID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *State) record(r ActionRecord) {
	r.Round = s.Round
	s.History = append(s.History, r)
}
