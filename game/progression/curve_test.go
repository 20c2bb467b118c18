package progression

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func testEntries() []Entry[string] {
	return []Entry[string]{
		{Key: "SAFE", Curve: Curve{Unlock: 1, Start: 45, End: 15}},
		{Key: "DMG_LOW", Curve: Curve{Unlock: 1, Start: 40, End: 20}},
		{Key: "DMG_HIGH", Curve: Curve{Unlock: 3, Start: 15, End: 25}},
		{Key: "FATAL", Curve: Curve{Unlock: 5, Start: 5, End: 15}},
		{Key: "HEAL", Curve: Curve{Unlock: 2, Start: 10, End: 15}},
		{Key: "LIFE", Curve: Curve{Unlock: 7, Start: 5, End: 10}},
	}
}

func TestCurve_WeightBeforeUnlockIsZero(t *testing.T) {
	c := Curve{Unlock: 5, Start: 5, End: 15}
	for round := 1; round < 5; round++ {
		if w := c.Weight(round, 15); w != 0 {
			t.Fatalf("round %d: expected 0, got %v", round, w)
		}
	}
	if w := c.Weight(5, 15); w != 5 {
		t.Fatalf("unlock round: expected start weight 5, got %v", w)
	}
}

func TestCurve_WeightClampsPastMaxRound(t *testing.T) {
	c := Curve{Unlock: 1, Start: 45, End: 15}
	if w := c.Weight(15, 15); w != 15 {
		t.Fatalf("expected end weight at max round, got %v", w)
	}
	if w := c.Weight(40, 15); w != 15 {
		t.Fatalf("expected clamped end weight, got %v", w)
	}
}

func TestCurve_WeightUnlockAtMaxRound(t *testing.T) {
	c := Curve{Unlock: 15, Start: 7, End: 30}
	if w := c.Weight(15, 15); w != 30 {
		t.Fatalf("expected end weight when span is zero, got %v", w)
	}
}

func TestBuild_RoundOneOnlyUnlockedTypes(t *testing.T) {
	dist := Build(testEntries(), 1, 15)
	if got := dist.Percent("FATAL"); got != 0 {
		t.Fatalf("FATAL should be locked in round 1, got %v", got)
	}
	if got := dist.Percent("SAFE"); math.Abs(got-100*45.0/85.0) > 1e-9 {
		t.Fatalf("unexpected SAFE percent %v", got)
	}
}

func TestBuild_AllZeroWeights(t *testing.T) {
	entries := []Entry[string]{{Key: "a", Curve: Curve{Unlock: 9, Start: 1, End: 1}}}
	dist := Build(entries, 1, 15)
	if dist.Total() != 0 {
		t.Fatalf("expected empty distribution, got %v", dist.Total())
	}
	if _, ok := dist.Sample(50); ok {
		t.Fatalf("sampling an empty distribution should fail")
	}
}

func TestDistribution_SampleBoundaries(t *testing.T) {
	dist := Distribution[string]{
		{Key: "a", Percent: 25},
		{Key: "b", Percent: 0},
		{Key: "c", Percent: 75},
	}
	cases := []struct {
		roll float64
		want string
	}{
		{0, "a"},
		{24.999, "a"},
		{25, "c"},
		{99.999, "c"},
		{100.5, "c"},
	}
	for _, tc := range cases {
		got, ok := dist.Sample(tc.roll)
		if !ok || got != tc.want {
			t.Fatalf("roll %v: expected %s, got %s (ok=%v)", tc.roll, tc.want, got, ok)
		}
	}
}

func TestApportion_LargestRemainder(t *testing.T) {
	dist := Distribution[string]{
		{Key: "a", Percent: 50},
		{Key: "b", Percent: 30},
		{Key: "c", Percent: 20},
	}
	counts := Apportion(dist, 4)
	want := map[string]int{"a": 2, "b": 1, "c": 1}
	for _, c := range counts {
		if want[c.Key] != c.Count {
			t.Fatalf("%s: expected %d, got %d", c.Key, want[c.Key], c.Count)
		}
	}
}

func TestSizeCurve_PoolSize(t *testing.T) {
	s := SizeCurve{Min: 4, Max: 12}
	if got := s.PoolSize(1, 15); got != 4 {
		t.Fatalf("round 1: expected 4, got %d", got)
	}
	if got := s.PoolSize(15, 15); got != 12 {
		t.Fatalf("max round: expected 12, got %d", got)
	}
	if got := s.PoolSize(8, 15); got != 8 {
		t.Fatalf("round 8: expected 8, got %d", got)
	}
}

func TestBuild_NormalizesTo100(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		round := rapid.IntRange(1, 40).Draw(t, "round")
		dist := Build(testEntries(), round, 15)
		if math.Abs(dist.Total()-100) > 1e-9 {
			t.Fatalf("round %d: total %v", round, dist.Total())
		}
		for _, e := range testEntries() {
			if round < e.Curve.Unlock && dist.Percent(e.Key) != 0 {
				t.Fatalf("round %d: %s is locked but has weight", round, e.Key)
			}
		}
	})
}

func TestApportion_SumsToN(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		round := rapid.IntRange(1, 40).Draw(t, "round")
		n := rapid.IntRange(1, 64).Draw(t, "n")
		dist := Build(testEntries(), round, 15)
		sum := 0
		for _, c := range Apportion(dist, n) {
			if c.Count < 0 {
				t.Fatalf("negative count for %s", c.Key)
			}
			if c.Count > 0 && dist.Percent(c.Key) == 0 {
				t.Fatalf("%s allocated while locked", c.Key)
			}
			sum += c.Count
		}
		if sum != n {
			t.Fatalf("expected %d allocated, got %d", n, sum)
		}
	})
}
