// Package progression はラウンド数から出現確率分布を求める純粋関数群です。
package progression

import (
	"math"
	"sort"
)

// Curve は1種別の出現率の推移です。
//
//	Unlock  解放ラウンド。これより前の重みは0
//	Start   解放ラウンドでの出現率(%)
//	End     最終ラウンドでの出現率(%)
type Curve struct {
	Unlock int
	Start  float64
	End    float64
}

// Weight は round における重みを返します。
// Unlock から maxRound までを線形補間し、範囲外はクランプします。
func (c Curve) Weight(round, maxRound int) float64 {
	if round < c.Unlock {
		return 0
	}
	t := 1.0
	if span := maxRound - c.Unlock; span > 0 {
		t = clamp(float64(round-c.Unlock)/float64(span), 0, 1)
	}
	w := c.Start + (c.End-c.Start)*t
	if w < 0 {
		return 0
	}
	return w
}

// Entry はキー付きの Curve です。スライスの順序が分布の順序になります。
type Entry[K comparable] struct {
	Key   K
	Curve Curve
}

// Bucket は正規化済み分布の1要素です。
type Bucket[K comparable] struct {
	Key     K
	Percent float64
}

// Distribution は合計100に正規化された分布です。
type Distribution[K comparable] []Bucket[K]

// Build は round における各キーの重みを求め、合計100に正規化します。
// 全ての重みが0の場合は全て0の分布を返します。
func Build[K comparable](entries []Entry[K], round, maxRound int) Distribution[K] {
	dist := make(Distribution[K], 0, len(entries))
	total := 0.0
	for _, e := range entries {
		w := e.Curve.Weight(round, maxRound)
		total += w
		dist = append(dist, Bucket[K]{Key: e.Key, Percent: w})
	}
	if total <= 0 {
		for i := range dist {
			dist[i].Percent = 0
		}
		return dist
	}
	for i := range dist {
		dist[i].Percent = dist[i].Percent / total * 100
	}
	return dist
}

// Total は分布の合計値です。
func (d Distribution[K]) Total() float64 {
	sum := 0.0
	for _, b := range d {
		sum += b.Percent
	}
	return sum
}

// Percent は key の出現率を返します。
func (d Distribution[K]) Percent(key K) float64 {
	for _, b := range d {
		if b.Key == key {
			return b.Percent
		}
	}
	return 0
}

// Sample は [0,100) の roll を累積確率で解決します。
// 浮動小数の誤差で末尾を超えた場合は最後の正の要素を返します。
func (d Distribution[K]) Sample(roll float64) (K, bool) {
	var zero K
	cumulative := 0.0
	last := -1
	for i, b := range d {
		if b.Percent <= 0 {
			continue
		}
		last = i
		cumulative += b.Percent
		if roll < cumulative {
			return b.Key, true
		}
	}
	if last < 0 {
		return zero, false
	}
	return d[last].Key, true
}

// Count は Apportion の結果の1要素です。
type Count[K comparable] struct {
	Key   K
	Count int
}

// Apportion は n 個を分布に従って最大剰余方式で配分します。
// 合計は分布が空でない限り必ず n になります。同率の剰余は分布順で優先します。
func Apportion[K comparable](d Distribution[K], n int) []Count[K] {
	counts := make([]Count[K], len(d))
	if n <= 0 || d.Total() <= 0 {
		for i, b := range d {
			counts[i] = Count[K]{Key: b.Key}
		}
		return counts
	}

	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, 0, len(d))
	assigned := 0
	total := d.Total()
	for i, b := range d {
		ideal := b.Percent / total * float64(n)
		whole := int(math.Floor(ideal))
		counts[i] = Count[K]{Key: b.Key, Count: whole}
		assigned += whole
		if b.Percent > 0 {
			rems = append(rems, remainder{index: i, frac: ideal - float64(whole)})
		}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac > rems[b].frac
	})
	for i := 0; assigned < n && len(rems) > 0; i++ {
		counts[rems[i%len(rems)].index].Count++
		assigned++
	}
	return counts
}

// SizeCurve はラウンドごとのプール数の推移です。
type SizeCurve struct {
	Min int
	Max int
}

// PoolSize は round におけるプール数を返します。
func (s SizeCurve) PoolSize(round, maxRound int) int {
	if s.Max < s.Min {
		return s.Min
	}
	t := 1.0
	if maxRound > 1 {
		t = clamp(float64(round-1)/float64(maxRound-1), 0, 1)
	}
	return int(math.Round(float64(s.Min) + float64(s.Max-s.Min)*t))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
