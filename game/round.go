package game

import (
	"fmt"
	"slices"
	"time"
)

const minPlayers = 2

func (e *Engine) startGame(s *State, in StartGame) error {
	if s.Phase != PhaseSetup && s.Phase != PhaseEnded {
		return fmt.Errorf("%w: game already running", ErrInvalidTransition)
	}
	if len(in.Players) < minPlayers {
		return fmt.Errorf("%w: need at least %d players", ErrInvalidTransition, minPlayers)
	}
	seen := make(map[string]bool, len(in.Players))
	players := make([]Player, 0, len(in.Players))
	for _, spec := range in.Players {
		if spec.ID == "" || seen[spec.ID] {
			return fmt.Errorf("%w: duplicate or empty player id %q", ErrInvalidTransition, spec.ID)
		}
		seen[spec.ID] = true
		players = append(players, NewPlayer(spec, e.cfg.Player))
	}

	*s = State{
		Phase:     PhaseItemSelection,
		Round:     1,
		Players:   players,
		Confirmed: make(map[string]bool, len(players)),
		Seed:      in.Seed,
	}
	// 選択中に見せるプレビュー。開始時に作り直す
	s.Pool = e.generatePool(s, 1)
	s.Counts = recount(s.Pool)
	s.Quests = e.generateQuests(s)
	s.CurrentTurn = players[0].ID
	s.record(ActionRecord{Kind: ActionGameStarted, At: in.At})
	return nil
}

func (e *Engine) selectItem(s *State, in SelectItem) error {
	if s.Phase != PhaseItemSelection || s.Confirmed[in.PlayerID] {
		return fmt.Errorf("%w: selection closed", ErrInvalidTransition)
	}
	if _, ok := LookupItem(in.Item); !ok {
		return fmt.Errorf("%w: unknown item %q", ErrInvalidTransition, in.Item)
	}
	p := s.player(in.PlayerID)
	if p == nil {
		return fmt.Errorf("%w: unknown player %q", ErrInvalidTransition, in.PlayerID)
	}
	next := *p
	item := s.mintItem(&next, in.Item)
	next, err := next.AddItem(item, e.cfg.Player.InventoryCapacity)
	if err != nil {
		return reject(in.PlayerID, err)
	}
	*p = next
	return nil
}

func (e *Engine) deselectItem(s *State, in DeselectItem) error {
	if s.Phase != PhaseItemSelection || s.Confirmed[in.PlayerID] {
		return fmt.Errorf("%w: selection closed", ErrInvalidTransition)
	}
	p := s.player(in.PlayerID)
	if p == nil {
		return fmt.Errorf("%w: unknown player %q", ErrInvalidTransition, in.PlayerID)
	}
	next, _, ok := p.RemoveItem(in.ItemID)
	if !ok {
		return fmt.Errorf("%w: unknown item %q", ErrInvalidTransition, in.ItemID)
	}
	*p = next
	return nil
}

func (e *Engine) confirmSelection(s *State, in ConfirmSelection) error {
	if s.Phase != PhaseItemSelection || s.Confirmed[in.PlayerID] {
		return fmt.Errorf("%w: selection closed", ErrInvalidTransition)
	}
	if s.player(in.PlayerID) == nil {
		return fmt.Errorf("%w: unknown player %q", ErrInvalidTransition, in.PlayerID)
	}
	if s.Confirmed == nil {
		s.Confirmed = make(map[string]bool)
	}
	s.Confirmed[in.PlayerID] = true
	for _, p := range s.Players {
		if !s.Confirmed[p.ID] {
			return nil
		}
	}
	s.Confirmed = nil
	e.startRound(s, 1, in.At)
	return nil
}

// startRound は round のプールとクエストを生成して playing に入ります。
func (e *Engine) startRound(s *State, round int, at time.Time) {
	s.Round = round
	s.Pool = e.generatePool(s, round)
	s.Counts = recount(s.Pool)
	s.Quests = e.generateQuests(s)
	s.Targeting = nil
	s.Shop = nil
	for i := range s.Players {
		s.Players[i].WantsStore = false
		s.Players[i].Effects = RemoveEffect(s.Players[i].Effects, EffectShield)
	}
	if survivors := s.Survivors(); len(survivors) > 0 {
		s.CurrentTurn = survivors[(round-1)%len(survivors)]
	}
	s.Phase = PhasePlaying
	s.record(ActionRecord{Kind: ActionRoundStarted, PlayerID: s.CurrentTurn, At: at})
}

// finishRound はラウンド終了の待ちの後、ショップか次のラウンドへ進みます。
func (e *Engine) finishRound(s *State, at time.Time) error {
	if s.Phase != PhaseRoundEnding {
		return fmt.Errorf("%w: round not ending", ErrInvalidTransition)
	}
	var participants []string
	for _, p := range s.Players {
		if !p.Eliminated() && p.WantsStore && p.Currency > 0 {
			participants = append(participants, p.ID)
		}
	}
	if len(participants) == 0 {
		e.startRound(s, s.Round+1, at)
		return nil
	}
	s.Phase = PhaseShopping
	s.Shop = &ShopState{
		Participants: participants,
		Carts:        make(map[string][]ItemType, len(participants)),
		Confirmed:    make(map[string]bool, len(participants)),
		OpenedAt:     at,
	}
	return nil
}

func (e *Engine) resetRound(s *State, at time.Time) error {
	if s.Phase != PhasePlaying && s.Phase != PhaseRoundEnding {
		return fmt.Errorf("%w: no round to reset", ErrInvalidTransition)
	}
	e.startRound(s, s.Round, at)
	return nil
}

func (e *Engine) applyRoundReset(s *State, in RoundReset) error {
	if s.Phase == PhaseSetup {
		return fmt.Errorf("%w: round reset before game start", ErrInvalidTransition)
	}
	s.Round = in.Round
	s.Phase = in.Phase
	s.CurrentTurn = in.CurrentTurn
	s.Players = in.Players
	s.Pool = in.Pool
	s.Quests = in.Quests
	s.Shop = in.Shop
	s.Nonce = in.Nonce
	s.Targeting = nil
	s.Confirmed = nil
	s.Counts = recount(s.Pool)
	return nil
}

func (e *Engine) toggleShopInterest(s *State, in ToggleShopInterest) error {
	if s.Phase != PhasePlaying && s.Phase != PhaseRoundEnding {
		return fmt.Errorf("%w: shop interest closed", ErrInvalidTransition)
	}
	p := s.player(in.PlayerID)
	if p == nil || p.Eliminated() {
		return fmt.Errorf("%w: unknown player %q", ErrInvalidTransition, in.PlayerID)
	}
	p.WantsStore = !p.WantsStore
	return nil
}

func (e *Engine) shopper(s *State, playerID string) error {
	if s.Phase != PhaseShopping || s.Shop == nil {
		return fmt.Errorf("%w: shop closed", ErrInvalidTransition)
	}
	if !slices.Contains(s.Shop.Participants, playerID) || s.Shop.Confirmed[playerID] {
		return fmt.Errorf("%w: %q is not shopping", ErrInvalidTransition, playerID)
	}
	return nil
}

func (e *Engine) updateCart(s *State, in UpdateCart) error {
	if err := e.shopper(s, in.PlayerID); err != nil {
		return err
	}
	if _, ok := e.cfg.Price(string(in.Item)); !ok {
		return fmt.Errorf("%w: %q is not for sale", ErrInvalidTransition, in.Item)
	}
	cart := slices.Clone(s.Shop.Carts[in.PlayerID])
	if in.Remove {
		i := slices.Index(cart, in.Item)
		if i < 0 {
			return fmt.Errorf("%w: %q not in cart", ErrInvalidTransition, in.Item)
		}
		cart = slices.Delete(cart, i, i+1)
	} else {
		cart = append(cart, in.Item)
	}
	s.Shop.Carts[in.PlayerID] = cart
	return nil
}

func (e *Engine) confirmPurchase(s *State, in ConfirmPurchase) error {
	if err := e.shopper(s, in.PlayerID); err != nil {
		return err
	}
	if err := e.purchase(s, in.PlayerID, in.At); err != nil {
		return reject(in.PlayerID, err)
	}
	s.Shop.Confirmed[in.PlayerID] = true
	if e.shopDone(s) {
		e.startRound(s, s.Round+1, in.At)
	}
	return nil
}

// purchase はカートを一括で購入します。1つでも払えない、入らない場合は何も変えません。
func (e *Engine) purchase(s *State, playerID string, at time.Time) error {
	p := s.player(playerID)
	cart := s.Shop.Carts[playerID]
	total := 0
	for _, item := range cart {
		price, _ := e.cfg.Price(string(item))
		total += price
	}
	if total > p.Currency {
		return ErrInsufficientFunds
	}
	if len(p.Inventory)+len(cart) > e.cfg.Player.InventoryCapacity {
		return ErrInventoryFull
	}
	next := *p
	for _, item := range cart {
		bought := s.mintItem(&next, item)
		var err error
		next, err = next.AddItem(bought, e.cfg.Player.InventoryCapacity)
		if err != nil {
			return err
		}
		s.record(ActionRecord{Kind: ActionPurchased, PlayerID: playerID, ItemType: item, At: at})
	}
	next.Currency -= total
	*p = next
	return nil
}

func (e *Engine) shopDone(s *State) bool {
	for _, id := range s.Shop.Participants {
		if !s.Shop.Confirmed[id] {
			return false
		}
	}
	return true
}

// closeShop は未確定のカートを自動確定します。払えないカートは破棄します。
func (e *Engine) closeShop(s *State, at time.Time) error {
	if s.Phase != PhaseShopping || s.Shop == nil {
		return fmt.Errorf("%w: shop closed", ErrInvalidTransition)
	}
	for _, id := range s.Shop.Participants {
		if s.Shop.Confirmed[id] {
			continue
		}
		if err := e.purchase(s, id, at); err != nil {
			s.Shop.Carts[id] = nil
		}
		s.Shop.Confirmed[id] = true
	}
	e.startRound(s, s.Round+1, at)
	return nil
}
