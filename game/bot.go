package game

import (
	"math/rand/v2"
	"slices"
	"time"
)

// BotController は状態から次の意図を決めるAIです。
type BotController interface {
	// Decide は self が今取るべき意図を返します。何もしない場合は false です。
	Decide(s State, self string, now time.Time) (Intent, bool)
}

// RuleBotController はルールベースのボットAIです。
// ボットごとに異なる個性パラメータを持ちます。
type RuleBotController struct {
	Caution    int     // この resistance 以下で守りに入る
	Aggression float64 // 手錠を使う確率
	Greed      float64 // ショップに寄る確率

	Prices map[ItemType]int
}

// NewRuleBotController はランダムな個性を持つボットAIを生成します。
func NewRuleBotController(prices map[ItemType]int) *RuleBotController {
	return &RuleBotController{
		Caution:    2 + rand.IntN(3),         // 2〜4
		Aggression: 0.3 + rand.Float64()*0.6, // 0.3〜0.9
		Greed:      0.5 + rand.Float64()*0.5, // 0.5〜1.0
		Prices:     prices,
	}
}

func (r *RuleBotController) Decide(s State, self string, now time.Time) (Intent, bool) {
	me, ok := s.Player(self)
	if !ok || me.Eliminated() {
		return nil, false
	}
	switch s.Phase {
	case PhaseItemSelection:
		return r.decideSelection(s, me, now)
	case PhasePlaying:
		if s.CurrentTurn != self {
			if !me.WantsStore && me.Currency > 0 && rand.Float64() < r.Greed {
				return ToggleShopInterest{PlayerID: self}, true
			}
			return nil, false
		}
		return r.decideTurn(s, me, now)
	case PhaseShopping:
		return r.decideShop(s, me, now)
	}
	return nil, false
}

func (r *RuleBotController) decideSelection(s State, me Player, now time.Time) (Intent, bool) {
	if s.Confirmed[me.ID] {
		return nil, false
	}
	// 半分ほど持ったら確定する
	if len(me.Inventory) >= 3 {
		return ConfirmSelection{PlayerID: me.ID, At: now}, true
	}
	items := Items()
	return SelectItem{PlayerID: me.ID, Item: items[rand.IntN(len(items))].Type}, true
}

func (r *RuleBotController) decideTurn(s State, me Player, now time.Time) (Intent, bool) {
	// 選択待ちのアイテムがあれば対象を決める
	if s.Targeting != nil && s.Targeting.PlayerID == me.ID {
		return r.chooseTarget(s, me, now), true
	}

	if me.Resistance <= r.Caution {
		if it, ok := findItem(me, ItemShield); ok && !HasEffect(me.Effects, EffectShield) {
			return UseItem{PlayerID: me.ID, ItemID: it.ID, At: now}, true
		}
		if it, ok := findItem(me, ItemPocketPill); ok && me.Resistance < me.MaxResistance {
			return UseItem{PlayerID: me.ID, ItemID: it.ID, At: now}, true
		}
	}

	if it, ok := findItem(me, ItemHandcuffs); ok && rand.Float64() < r.Aggression {
		for _, id := range s.Opponents(me.ID) {
			opp, _ := s.Player(id)
			if !HasEffect(opp.Effects, EffectShield) && !HasEffect(opp.Effects, EffectRestrained) {
				return UseItem{PlayerID: me.ID, ItemID: it.ID, Target: &Target{PlayerID: id}, At: now}, true
			}
		}
	}

	// 既知の安全なピルを優先
	var known, unknown []Pill
	for _, p := range s.Pool {
		if p.KnownTo(me.ID) {
			known = append(known, p)
		} else {
			unknown = append(unknown, p)
		}
	}
	for _, p := range known {
		if out := ResolvePill(p, HasEffect(me.Effects, EffectShield)); out.Damage == 0 {
			return ConsumePill{PlayerID: me.ID, PillID: p.ID, At: now}, true
		}
	}
	// 危険だと分かっているピルは相手に飲ませる
	if it, ok := findItem(me, ItemForceFeed); ok {
		for _, p := range known {
			if ResolvePill(p, false).Damage >= me.MaxResistance/2 {
				return UseItem{PlayerID: me.ID, ItemID: it.ID, Target: &Target{PillID: p.ID}, At: now}, true
			}
		}
	}
	if it, ok := findItem(me, ItemScanner); ok && len(unknown) > 0 {
		target := unknown[rand.IntN(len(unknown))]
		return UseItem{PlayerID: me.ID, ItemID: it.ID, Target: &Target{PillID: target.ID}, At: now}, true
	}

	candidates := unknown
	if len(candidates) == 0 {
		candidates = known
	}
	if len(candidates) == 0 {
		return nil, false
	}
	// クエストの次の形状に合うものがあれば選ぶ
	if next, ok := s.Quests[me.ID].Next(); ok {
		i := slices.IndexFunc(candidates, func(p Pill) bool { return p.Shape == next })
		if i >= 0 && rand.Float64() < 0.5 {
			return ConsumePill{PlayerID: me.ID, PillID: candidates[i].ID, At: now}, true
		}
	}
	pick := candidates[rand.IntN(len(candidates))]
	return ConsumePill{PlayerID: me.ID, PillID: pick.ID, At: now}, true
}

func (r *RuleBotController) chooseTarget(s State, me Player, now time.Time) Intent {
	switch s.Targeting.Target {
	case TargetOpponent:
		if opps := s.Opponents(me.ID); len(opps) > 0 {
			return ChooseTarget{PlayerID: me.ID, Target: Target{PlayerID: opps[0]}, At: now}
		}
	case TargetPill, TargetPillForce:
		if len(s.Pool) > 0 {
			p := s.Pool[rand.IntN(len(s.Pool))]
			return ChooseTarget{PlayerID: me.ID, Target: Target{PillID: p.ID}, At: now}
		}
	}
	return CancelTargeting{PlayerID: me.ID}
}

func (r *RuleBotController) decideShop(s State, me Player, now time.Time) (Intent, bool) {
	if s.Shop == nil || !slices.Contains(s.Shop.Participants, me.ID) || s.Shop.Confirmed[me.ID] {
		return nil, false
	}
	cart := s.Shop.Carts[me.ID]
	total := 0
	for _, item := range cart {
		total += r.price(item)
	}
	if total > me.Currency {
		return UpdateCart{PlayerID: me.ID, Item: cart[len(cart)-1], Remove: true}, true
	}
	// 1つ買えば十分
	if len(cart) > 0 || len(me.Inventory) >= maxBotInventory {
		return ConfirmPurchase{PlayerID: me.ID, At: now}, true
	}
	for _, item := range []ItemType{ItemShield, ItemScanner, ItemPocketPill, ItemHandcuffs, ItemForceFeed} {
		if r.price(item) <= me.Currency {
			return UpdateCart{PlayerID: me.ID, Item: item}, true
		}
	}
	return ConfirmPurchase{PlayerID: me.ID, At: now}, true
}

func (r *RuleBotController) price(item ItemType) int {
	if p, ok := r.Prices[item]; ok {
		return p
	}
	return 1
}

// maxBotInventory はボットが買い足す上限です。
const maxBotInventory = 4

func findItem(p Player, t ItemType) (InventoryItem, bool) {
	for _, it := range p.Inventory {
		if it.Type == t {
			return it, true
		}
	}
	return InventoryItem{}, false
}

// FallbackIntent は判断が受理されなかったときの無難な意図です。
func FallbackIntent(s State, self string, now time.Time) (Intent, bool) {
	switch s.Phase {
	case PhaseItemSelection:
		if !s.Confirmed[self] {
			return ConfirmSelection{PlayerID: self, At: now}, true
		}
	case PhasePlaying:
		if s.Targeting != nil && s.Targeting.PlayerID == self {
			return CancelTargeting{PlayerID: self}, true
		}
		if s.CurrentTurn == self && len(s.Pool) > 0 {
			return ConsumePill{PlayerID: self, PillID: s.Pool[0].ID, At: now}, true
		}
	case PhaseShopping:
		if s.Shop != nil && slices.Contains(s.Shop.Participants, self) && !s.Shop.Confirmed[self] {
			if cart := s.Shop.Carts[self]; len(cart) > 0 {
				return UpdateCart{PlayerID: self, Item: cart[len(cart)-1], Remove: true}, true
			}
			return ConfirmPurchase{PlayerID: self, At: now}, true
		}
	}
	return nil, false
}
