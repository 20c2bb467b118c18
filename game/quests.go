package game

// Advance は消費したピルの形状でクエストを進めます。
// 次に期待する形状と一致すれば進み、一致しなければ0に戻ります。
// 完了した瞬間だけ true を返します。
func (q ShapeQuest) Advance(shape Shape) (ShapeQuest, bool) {
	if q.Completed || len(q.Sequence) == 0 {
		return q, false
	}
	if q.Sequence[q.Progress] != shape {
		q.Progress = 0
		return q, false
	}
	q.Progress++
	if q.Progress >= len(q.Sequence) {
		q.Progress = len(q.Sequence)
		q.Completed = true
		return q, true
	}
	return q, false
}

// Next は次に期待する形状です。
func (q ShapeQuest) Next() (Shape, bool) {
	if q.Completed || q.Progress >= len(q.Sequence) {
		return "", false
	}
	return q.Sequence[q.Progress], true
}
