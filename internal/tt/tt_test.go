package tt

import (
	"testing"

	"github.com/hailam/lazysmp-chess/internal/board"
)

func newTestPosition(t *testing.T) *board.Position {
	t.Helper()
	return board.NewPosition()
}

// TestMateDistanceEncodingRoundTrip: storing a mate score at ply p and
// reading it back at ply q must shift a winning mate score by p-q and a
// losing one by q-p, so the distance to mate as seen from the reading node
// is preserved and the sign never flips.
func TestMateDistanceEncodingRoundTrip(t *testing.T) {
	cases := []struct {
		score   int
		storeAt int
		readAt  int
	}{
		{MateScore - 3, 5, 5},
		{MateScore - 3, 5, 2},
		{-MateScore + 4, 7, 1},
		{-MateScore + 4, 7, 7},
	}
	for _, tc := range cases {
		stored := AdjustScoreToTT(tc.score, tc.storeAt)
		got := AdjustScoreFromTT(stored, tc.readAt)
		want := tc.score + (tc.storeAt - tc.readAt)
		if tc.score < 0 {
			want = tc.score - (tc.storeAt - tc.readAt)
		}
		if got != want {
			t.Errorf("score=%d storeAt=%d readAt=%d: got %d want %d", tc.score, tc.storeAt, tc.readAt, got, want)
		}
	}
}

// TestNonMateScoreUnchanged checks ordinary centipawn scores pass through
// the mate-distance adjustment untouched.
func TestNonMateScoreUnchanged(t *testing.T) {
	for _, s := range []int{0, 120, -350, MateScore - MaxPly - 1} {
		if got := AdjustScoreToTT(s, 10); got != s {
			t.Errorf("AdjustScoreToTT(%d, 10) = %d, want unchanged", s, got)
		}
		if got := AdjustScoreFromTT(s, 10); got != s {
			t.Errorf("AdjustScoreFromTT(%d, 10) = %d, want unchanged", s, got)
		}
	}
}

// TestProbeStoreRoundTrip checks a stored entry is found by Probe with the
// same score/depth/bound/PV flag, and that tag matching rejects a
// different key in the same bucket slot budget.
func TestProbeStoreRoundTrip(t *testing.T) {
	table := New(1)
	table.NewSearch()

	pos := newTestPosition(t)
	key := pos.Hash

	table.Store(key, 0, 0, 55, 40, 6, BoundExact, true)

	entry, hit := table.Probe(pos, key, 0)
	if !hit {
		t.Fatal("expected hit after store")
	}
	if entry.Score != 55 || entry.Depth != 6 || entry.Bound != BoundExact || !entry.PV {
		t.Errorf("unexpected entry: %+v", entry)
	}

	if _, hit := table.Probe(pos, key^0xFFFF_FFFF_0000_0000, 0); hit {
		t.Error("probe with a different key hit the same bucket's tag")
	}
}

// TestHashFullZeroOnFreshTable checks a freshly cleared table reports 0
// permille full.
func TestHashFullZeroOnFreshTable(t *testing.T) {
	table := New(1)
	if got := table.HashFull(); got != 0 {
		t.Errorf("HashFull() on empty table = %d, want 0", got)
	}
}

// TestResizeRejectsBelowOneBucket checks resize clamps to at least one
// bucket rather than producing a zero-size table.
func TestResizeRejectsBelowOneBucket(t *testing.T) {
	table := New(1)
	table.Resize(0)
	if len(table.buckets) == 0 {
		t.Fatal("Resize(0) produced a zero-bucket table")
	}
}
