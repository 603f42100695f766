package sparse

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestBuildScatterPlanDedup(t *testing.T) {
	tests := []struct {
		name string
		keys []uint64
	}{
		{"empty", nil},
		{"single", []uint64{42}},
		{"all equal", []uint64{7, 7, 7, 7}},
		{"already sorted", []uint64{1, 2, 3, 4}},
		{"reversed with duplicates", []uint64{9, 5, 9, 1, 5, 5, 0}},
	}

	rng := rand.New(rand.NewSource(1))
	random := make([]uint64, 2000)
	for i := range random {
		random[i] = uint64(rng.Intn(300))
	}
	tests = append(tests, struct {
		name string
		keys []uint64
	}{"random", random})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := BuildScatterPlan(tt.keys)

			// strictly increasing unique keys
			for u := 1; u < len(plan.Keys); u++ {
				if plan.Keys[u] <= plan.Keys[u-1] {
					t.Fatalf("keys not strictly increasing at %d: %d <= %d", u, plan.Keys[u], plan.Keys[u-1])
				}
			}

			// every source slot covered exactly once, in the segment of its own key
			seen := make([]int, len(tt.keys))
			for u := range plan.Keys {
				start, end := plan.Segment(u)
				if start >= end {
					t.Fatalf("empty segment for key %d", plan.Keys[u])
				}
				for p := start; p < end; p++ {
					slot := plan.Order[p]
					seen[slot]++
					if tt.keys[slot] != plan.Keys[u] {
						t.Errorf("slot %d has key %d but sits in segment of %d", slot, tt.keys[slot], plan.Keys[u])
					}
					if plan.InvOrder[slot] != p {
						t.Errorf("InvOrder[%d] = %d, want %d", slot, plan.InvOrder[slot], p)
					}
					if plan.Unique[slot] != u {
						t.Errorf("Unique[%d] = %d, want %d", slot, plan.Unique[slot], u)
					}
				}
			}
			for slot, c := range seen {
				if c != 1 {
					t.Errorf("slot %d covered %d times", slot, c)
				}
			}
			if plan.Starts[len(plan.Keys)] != len(tt.keys) {
				t.Errorf("last start = %d, want %d", plan.Starts[len(plan.Keys)], len(tt.keys))
			}
		})
	}
}

func TestBuildScatterPlanStable(t *testing.T) {
	plan := BuildScatterPlan([]uint64{3, 1, 3, 1, 3})
	want := []int{1, 3, 0, 2, 4}
	for i, slot := range plan.Order {
		if slot != want[i] {
			t.Fatalf("Order = %v, want %v", plan.Order, want)
		}
	}
}

func TestGatherMatchesSerialSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := make([]uint64, 5000)
	scratch := make([]mgl64.Vec3, len(keys))
	expected := map[uint64]mgl64.Vec3{}
	for i := range keys {
		keys[i] = uint64(rng.Intn(200))
		scratch[i] = mgl64.Vec3{float64(i % 3), 1, float64(i%5) * 0.5}
		expected[keys[i]] = expected[keys[i]].Add(scratch[i])
	}

	plan := BuildScatterPlan(keys)
	for _, workers := range []int{1, 4, 16} {
		dst := make([]mgl64.Vec3, plan.NumUnique())
		Gather(plan, workers, scratch, dst, mgl64.Vec3.Add)
		for u, key := range plan.Keys {
			if !dst[u].ApproxEqualThreshold(expected[key], 1e-12) {
				t.Errorf("workers=%d key %d: got %v, want %v", workers, key, dst[u], expected[key])
			}
		}
	}
}

func TestGatherAddAccumulates(t *testing.T) {
	plan := BuildScatterPlan([]uint64{0, 1, 0})
	dst := []float64{10, 20}
	GatherAdd(plan, 1, []float64{1, 2, 3}, dst, func(a, b float64) float64 { return a + b })
	if dst[0] != 14 || dst[1] != 22 {
		t.Errorf("GatherAdd = %v, want [14 22]", dst)
	}
}

func TestPairKeyRoundTrip(t *testing.T) {
	n := 1000
	for _, rc := range [][2]int{{0, 0}, {0, 999}, {999, 0}, {512, 17}} {
		row, col := PairFromKey(PairKey(rc[0], rc[1], n), n)
		if row != rc[0] || col != rc[1] {
			t.Errorf("PairFromKey(PairKey(%d,%d)) = (%d,%d)", rc[0], rc[1], row, col)
		}
	}
	if PairKey(1, 0, n) <= PairKey(0, 999, n) {
		t.Error("keys must sort row-major")
	}
}

func TestDump(t *testing.T) {
	plan := BuildScatterPlan([]uint64{PairKey(1, 2, 4), PairKey(0, 0, 4), PairKey(1, 2, 4)})
	var buf bytes.Buffer
	if err := plan.Dump(&buf, "A", 4); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "3 slots, 2 unique") || !strings.Contains(out, "(1, 2) x2") {
		t.Errorf("unexpected dump:\n%s", out)
	}
}
