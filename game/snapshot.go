package game

// PillView はプレイヤーから見えるピルです。未公開の種別は空になります。
type PillView struct {
	ID       string   `json:"id"`
	Shape    Shape    `json:"shape"`
	Type     PillType `json:"type,omitempty"`
	Revealed bool     `json:"revealed"`
	Inverted bool     `json:"inverted"`
	Doubled  bool     `json:"doubled"`
}

type PlayerView struct {
	Player
	Quest  ShapeQuest `json:"quest"`
	IsTurn bool       `json:"isTurn"`
}

// Snapshot は描画層に渡す読み取り専用の射影です。
type Snapshot struct {
	Viewer      string           `json:"viewer"`
	Phase       Phase            `json:"phase"`
	Round       int              `json:"round"`
	CurrentTurn string           `json:"currentTurn"`
	Winner      string           `json:"winner,omitempty"`
	Players     []PlayerView     `json:"players"`
	Pool        []PillView       `json:"pool"`
	Counts      Counts           `json:"counts"`
	History     []ActionRecord   `json:"history"`
	Targeting   *TargetSelection `json:"targeting,omitempty"`
	Shop        *ShopState       `json:"shop,omitempty"`
}

// Snapshot は viewer から見た射影を作ります。history は末尾 tail 件だけ含めます。
func (s State) Snapshot(viewer string, tail int) Snapshot {
	c := s.Clone()
	snap := Snapshot{
		Viewer:      viewer,
		Phase:       c.Phase,
		Round:       c.Round,
		CurrentTurn: c.CurrentTurn,
		Winner:      c.Winner,
		Counts:      c.Counts,
		Targeting:   c.Targeting,
		Shop:        c.Shop,
	}
	for _, p := range c.Players {
		snap.Players = append(snap.Players, PlayerView{
			Player: p,
			Quest:  c.Quests[p.ID],
			IsTurn: p.ID == c.CurrentTurn,
		})
	}
	for _, p := range c.Pool {
		v := PillView{ID: p.ID, Shape: p.Shape, Revealed: p.Revealed, Inverted: p.Inverted, Doubled: p.Doubled}
		if p.KnownTo(viewer) {
			v.Type = p.Type
		}
		snap.Pool = append(snap.Pool, v)
	}
	snap.History = c.History
	if tail >= 0 && len(snap.History) > tail {
		snap.History = snap.History[len(snap.History)-tail:]
	}
	return snap
}
