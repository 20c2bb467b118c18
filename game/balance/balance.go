// Package balance はゲームの数値設定です。TOMLから読み込めます。
package balance

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"dosage/game/progression"
)

var (
	ErrInvalidBalance = errors.New("invalid balance")
)

type Config struct {
	MaxRound int           `toml:"max_round"`
	Player   PlayerConfig  `toml:"player"`
	Pool     PoolConfig    `toml:"pool"`
	Quest    QuestConfig   `toml:"quest"`
	Pills    []PillConfig  `toml:"pills"`
	Shapes   []ShapeConfig `toml:"shapes"`
	Shop     ShopConfig    `toml:"shop"`
}

type PlayerConfig struct {
	Lives             int `toml:"lives"`
	Resistance        int `toml:"resistance"`
	InventoryCapacity int `toml:"inventory_capacity"`
	Currency          int `toml:"currency"`
}

type PoolConfig struct {
	MinSize int `toml:"min_size"`
	MaxSize int `toml:"max_size"`
}

// QuestLength は FromRound 以降のクエスト長です。
type QuestLength struct {
	FromRound int `toml:"from_round"`
	Length    int `toml:"length"`
}

type QuestConfig struct {
	Lengths []QuestLength `toml:"lengths"`
	Reward  int           `toml:"reward"`
}

type PillConfig struct {
	Type         string  `toml:"type"`
	Unlock       int     `toml:"unlock"`
	Start        float64 `toml:"start"`
	End          float64 `toml:"end"`
	DamageMin    int     `toml:"damage_min"`
	DamageMax    int     `toml:"damage_max"`
	Heal         int     `toml:"heal"`
	LivesRestore int     `toml:"lives_restore"`
}

type ShapeConfig struct {
	Shape  string  `toml:"shape"`
	Unlock int     `toml:"unlock"`
	Start  float64 `toml:"start"`
	End    float64 `toml:"end"`
}

type ShopConfig struct {
	Prices map[string]int `toml:"prices"`
}

// Default は標準のバランスです。
func Default() Config {
	return Config{
		MaxRound: 15,
		Player: PlayerConfig{
			Lives:             3,
			Resistance:        6,
			InventoryCapacity: 5,
		},
		Pool: PoolConfig{MinSize: 4, MaxSize: 12},
		Quest: QuestConfig{
			Lengths: []QuestLength{
				{FromRound: 1, Length: 2},
				{FromRound: 3, Length: 3},
				{FromRound: 6, Length: 4},
			},
			Reward: 1,
		},
		Pills: []PillConfig{
			{Type: "SAFE", Unlock: 1, Start: 45, End: 15},
			{Type: "DMG_LOW", Unlock: 1, Start: 40, End: 20, DamageMin: 1, DamageMax: 2},
			{Type: "DMG_HIGH", Unlock: 3, Start: 15, End: 25, DamageMin: 3, DamageMax: 4},
			{Type: "FATAL", Unlock: 5, Start: 5, End: 15, DamageMin: 99, DamageMax: 99},
			{Type: "HEAL", Unlock: 2, Start: 10, End: 15, Heal: 2},
			{Type: "LIFE", Unlock: 7, Start: 5, End: 10, LivesRestore: 1},
		},
		Shapes: []ShapeConfig{
			{Shape: "round", Unlock: 1, Start: 30, End: 10},
			{Shape: "capsule", Unlock: 1, Start: 30, End: 10},
			{Shape: "oval", Unlock: 1, Start: 40, End: 15},
			{Shape: "triangle", Unlock: 2, Start: 20, End: 15},
			{Shape: "cross", Unlock: 3, Start: 15, End: 15},
			{Shape: "heart", Unlock: 4, Start: 10, End: 15},
			{Shape: "star", Unlock: 5, Start: 10, End: 10},
			{Shape: "skull", Unlock: 6, Start: 5, End: 10},
		},
		Shop: ShopConfig{Prices: map[string]int{
			"scanner":       1,
			"inverter":      2,
			"double":        2,
			"pocket_pill":   1,
			"shield":        2,
			"handcuffs":     2,
			"force_feed":    3,
			"shuffle":       1,
			"discard":       2,
			"shape_bomb":    3,
			"shape_scanner": 2,
		}},
	}
}

// Load は path のTOMLを読み込みます。未指定の項目は Default の値になります。
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read balance: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var overlay Config
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return Config{}, fmt.Errorf("decode balance: %w", err)
	}
	cfg := Default().merge(overlay)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// merge は o のゼロ値でない項目で c を上書きします。テーブル配列は丸ごと置き換えます。
func (c Config) merge(o Config) Config {
	if o.MaxRound != 0 {
		c.MaxRound = o.MaxRound
	}
	if o.Player.Lives != 0 {
		c.Player.Lives = o.Player.Lives
	}
	if o.Player.Resistance != 0 {
		c.Player.Resistance = o.Player.Resistance
	}
	if o.Player.InventoryCapacity != 0 {
		c.Player.InventoryCapacity = o.Player.InventoryCapacity
	}
	if o.Player.Currency != 0 {
		c.Player.Currency = o.Player.Currency
	}
	if o.Pool.MinSize != 0 {
		c.Pool.MinSize = o.Pool.MinSize
	}
	if o.Pool.MaxSize != 0 {
		c.Pool.MaxSize = o.Pool.MaxSize
	}
	if len(o.Quest.Lengths) > 0 {
		c.Quest.Lengths = o.Quest.Lengths
	}
	if o.Quest.Reward != 0 {
		c.Quest.Reward = o.Quest.Reward
	}
	if len(o.Pills) > 0 {
		c.Pills = o.Pills
	}
	if len(o.Shapes) > 0 {
		c.Shapes = o.Shapes
	}
	if len(o.Shop.Prices) > 0 {
		prices := make(map[string]int, len(c.Shop.Prices))
		for k, v := range c.Shop.Prices {
			prices[k] = v
		}
		for k, v := range o.Shop.Prices {
			prices[k] = v
		}
		c.Shop.Prices = prices
	}
	return c
}

func (c Config) Validate() error {
	if c.MaxRound < 1 {
		return fmt.Errorf("%w: max_round must be positive", ErrInvalidBalance)
	}
	if c.Player.Lives < 1 || c.Player.Resistance < 1 {
		return fmt.Errorf("%w: player lives and resistance must be positive", ErrInvalidBalance)
	}
	if c.Player.InventoryCapacity < 0 {
		return fmt.Errorf("%w: inventory_capacity must not be negative", ErrInvalidBalance)
	}
	if c.Pool.MinSize < 1 || c.Pool.MaxSize < c.Pool.MinSize {
		return fmt.Errorf("%w: pool sizes %d..%d", ErrInvalidBalance, c.Pool.MinSize, c.Pool.MaxSize)
	}
	if progression.Build(c.PillCurves(), 1, c.MaxRound).Total() <= 0 {
		return fmt.Errorf("%w: no pill type unlocked in round 1", ErrInvalidBalance)
	}
	if progression.Build(c.ShapeCurves(), 1, c.MaxRound).Total() <= 0 {
		return fmt.Errorf("%w: no shape unlocked in round 1", ErrInvalidBalance)
	}
	seen := make(map[string]bool, len(c.Pills))
	for _, p := range c.Pills {
		if seen[p.Type] {
			return fmt.Errorf("%w: duplicate pill type %q", ErrInvalidBalance, p.Type)
		}
		seen[p.Type] = true
		if p.DamageMax < p.DamageMin {
			return fmt.Errorf("%w: pill %q damage range", ErrInvalidBalance, p.Type)
		}
	}
	for item, price := range c.Shop.Prices {
		if price < 0 {
			return fmt.Errorf("%w: negative price for %q", ErrInvalidBalance, item)
		}
	}
	return nil
}

// PillCurves は種別ごとの出現曲線を設定順で返します。
func (c Config) PillCurves() []progression.Entry[string] {
	entries := make([]progression.Entry[string], 0, len(c.Pills))
	for _, p := range c.Pills {
		entries = append(entries, progression.Entry[string]{
			Key:   p.Type,
			Curve: progression.Curve{Unlock: p.Unlock, Start: p.Start, End: p.End},
		})
	}
	return entries
}

// ShapeCurves は形状ごとの出現曲線を設定順で返します。
func (c Config) ShapeCurves() []progression.Entry[string] {
	entries := make([]progression.Entry[string], 0, len(c.Shapes))
	for _, s := range c.Shapes {
		entries = append(entries, progression.Entry[string]{
			Key:   s.Shape,
			Curve: progression.Curve{Unlock: s.Unlock, Start: s.Start, End: s.End},
		})
	}
	return entries
}

func (c Config) PoolCurve() progression.SizeCurve {
	return progression.SizeCurve{Min: c.Pool.MinSize, Max: c.Pool.MaxSize}
}

// Pill は種別の設定を返します。
func (c Config) Pill(pillType string) (PillConfig, bool) {
	for _, p := range c.Pills {
		if p.Type == pillType {
			return p, true
		}
	}
	return PillConfig{}, false
}

// QuestLengthFor は round のクエスト長です。
func (c Config) QuestLengthFor(round int) int {
	length := 0
	for _, l := range c.Quest.Lengths {
		if round >= l.FromRound {
			length = l.Length
		}
	}
	return length
}

// Price は購入価格です。販売されていない場合は false を返します。
func (c Config) Price(item string) (int, bool) {
	p, ok := c.Shop.Prices[item]
	return p, ok
}
