package game

import (
	"dosage/game/progression"
)

// generatePool は round の分布からプールを生成します。
// 形状は最大剰余方式で個数を確定させ、種別は1つずつ累積確率で抽選します。
func (e *Engine) generatePool(s *State, round int) []Pill {
	cfg := e.cfg
	n := cfg.PoolCurve().PoolSize(round, cfg.MaxRound)
	typeDist := progression.Build(cfg.PillCurves(), round, cfg.MaxRound)
	shapeDist := progression.Build(cfg.ShapeCurves(), round, cfg.MaxRound)

	shapes := make([]Shape, 0, n)
	for _, c := range progression.Apportion(shapeDist, n) {
		for range c.Count {
			shapes = append(shapes, Shape(c.Key))
		}
	}

	r := s.rng()
	r.Shuffle(len(shapes), func(i, j int) { shapes[i], shapes[j] = shapes[j], shapes[i] })

	pool := make([]Pill, 0, n)
	for i := range n {
		key, ok := typeDist.Sample(r.Float64() * 100)
		if !ok {
			break
		}
		stats, _ := cfg.Pill(key)
		damage := stats.DamageMin
		if spread := stats.DamageMax - stats.DamageMin; spread > 0 {
			damage += r.IntN(spread + 1)
		}
		var shape Shape
		if i < len(shapes) {
			shape = shapes[i]
		}
		pool = append(pool, Pill{
			ID:           s.newID("pill"),
			Type:         PillType(key),
			Shape:        shape,
			Damage:       damage,
			Heal:         stats.Heal,
			LivesRestore: stats.LivesRestore,
		})
	}
	return pool
}

// generateQuests は生存プレイヤーごとに現在のプールから達成可能なクエストを作ります。
// 形状はプールの形状から非復元抽出するので、同じ形状が足りなくなることはありません。
func (e *Engine) generateQuests(s *State) map[string]ShapeQuest {
	quests := make(map[string]ShapeQuest, len(s.Players))
	length := min(e.cfg.QuestLengthFor(s.Round), len(s.Pool))
	for _, id := range s.Survivors() {
		shapes := make([]Shape, len(s.Pool))
		for i, p := range s.Pool {
			shapes[i] = p.Shape
		}
		r := s.rng()
		r.Shuffle(len(shapes), func(i, j int) { shapes[i], shapes[j] = shapes[j], shapes[i] })
		quests[id] = ShapeQuest{
			ID:       s.newID("quest"),
			Sequence: shapes[:length:length],
		}
	}
	return quests
}

// recount はプールから公開集計を作り直します。
func recount(pool []Pill) Counts {
	c := Counts{
		Types:  make(map[PillType]int),
		Shapes: make(map[Shape]int),
	}
	for _, p := range pool {
		c.Types[p.Type]++
		c.Shapes[p.Shape]++
	}
	return c
}
