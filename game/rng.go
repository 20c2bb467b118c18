package game

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// 乱数とIDは Seed と Nonce から決定的に導出する。ホストとゲストが同じ意図列を
// 適用すれば同じプールになる。
// アイテムのIDは持ち主ごとの通し番号から作り、Nonce には触れない。両者の
// 選択や購入がどの順で届いても同じIDになる。

var idNamespace = uuid.MustParse("6f1c7e5e-3a0b-4f57-9c52-8d8c0a3b6f21")

func (s *State) rng() *rand.Rand {
	r := rand.New(rand.NewPCG(s.Seed, s.Nonce))
	s.Nonce++
	return r
}

func (s *State) newID(kind string) string {
	id := uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "%d/%d/%s", s.Seed, s.Nonce, kind))
	s.Nonce++
	return id.String()
}

// mintItem は p の次の通し番号でアイテムを作ります。
func (s *State) mintItem(p *Player, t ItemType) InventoryItem {
	id := uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "%d/%s/%d/item", s.Seed, p.ID, p.Minted))
	p.Minted++
	return InventoryItem{ID: id.String(), Type: t}
}
