package game

import "time"

// Intent はUIやネットワークから届く操作です。
type Intent interface {
	IntentName() string
}

type StartGame struct {
	Players []PlayerSpec `json:"players"`
	Seed    uint64       `json:"seed"`
	At      time.Time    `json:"at"`
}

type SelectItem struct {
	PlayerID string   `json:"playerId"`
	Item     ItemType `json:"item"`
}

type DeselectItem struct {
	PlayerID string `json:"playerId"`
	ItemID   string `json:"itemId"`
}

type ConfirmSelection struct {
	PlayerID string    `json:"playerId"`
	At       time.Time `json:"at"`
}

type ConsumePill struct {
	PlayerID string    `json:"playerId"`
	PillID   string    `json:"pillId"`
	At       time.Time `json:"at"`
}

// UseItem は Target が nil で対象が必要な場合、ターゲット選択待ちに入ります。
type UseItem struct {
	PlayerID string    `json:"playerId"`
	ItemID   string    `json:"itemId"`
	Target   *Target   `json:"target,omitempty"`
	At       time.Time `json:"at"`
}

type ChooseTarget struct {
	PlayerID string    `json:"playerId"`
	Target   Target    `json:"target"`
	At       time.Time `json:"at"`
}

type CancelTargeting struct {
	PlayerID string `json:"playerId"`
}

type ToggleShopInterest struct {
	PlayerID string `json:"playerId"`
}

type UpdateCart struct {
	PlayerID string   `json:"playerId"`
	Item     ItemType `json:"item"`
	Remove   bool     `json:"remove"`
}

type ConfirmPurchase struct {
	PlayerID string    `json:"playerId"`
	At       time.Time `json:"at"`
}

// FinishRound はラウンド終了の待ち時間が過ぎたときの遷移です。
type FinishRound struct {
	At time.Time `json:"at"`
}

// CloseShop はショップの制限時間切れです。
type CloseShop struct {
	At time.Time `json:"at"`
}

type ResetRound struct {
	At time.Time `json:"at"`
}

type ResetGame struct{}

// RoundReset はホストが再計算したラウンドの派生状態です。ゲストはこれで上書きします。
type RoundReset struct {
	Round       int                   `json:"round"`
	Phase       Phase                 `json:"phase"`
	CurrentTurn string                `json:"currentTurn"`
	Players     []Player              `json:"players"`
	Pool        []Pill                `json:"pool"`
	Quests      map[string]ShapeQuest `json:"quests"`
	Shop        *ShopState            `json:"shop,omitempty"`
	Nonce       uint64                `json:"nonce"`
}

func (StartGame) IntentName() string          { return "startGame" }
func (SelectItem) IntentName() string         { return "selectItem" }
func (DeselectItem) IntentName() string       { return "deselectItem" }
func (ConfirmSelection) IntentName() string   { return "confirmSelection" }
func (ConsumePill) IntentName() string        { return "consumePill" }
func (UseItem) IntentName() string            { return "useItem" }
func (ChooseTarget) IntentName() string       { return "chooseTarget" }
func (CancelTargeting) IntentName() string    { return "cancelTargeting" }
func (ToggleShopInterest) IntentName() string { return "toggleShopInterest" }
func (UpdateCart) IntentName() string         { return "updateCart" }
func (ConfirmPurchase) IntentName() string    { return "purchase" }
func (FinishRound) IntentName() string        { return "finishRound" }
func (CloseShop) IntentName() string          { return "closeShop" }
func (ResetRound) IntentName() string         { return "resetRound" }
func (ResetGame) IntentName() string          { return "resetGame" }
func (RoundReset) IntentName() string         { return "roundReset" }

// RoundResetFrom は s のラウンド派生状態を取り出します。
func RoundResetFrom(s State) RoundReset {
	c := s.Clone()
	return RoundReset{
		Round:       c.Round,
		Phase:       c.Phase,
		CurrentTurn: c.CurrentTurn,
		Players:     c.Players,
		Pool:        c.Pool,
		Quests:      c.Quests,
		Shop:        c.Shop,
		Nonce:       c.Nonce,
	}
}
