package search

import (
	"testing"
	"time"

	"github.com/hailam/lazysmp-chess/internal/board"
)

// TestSearchReturnsLegalMove: a shallow root search from the Ruy Lopez
// position must report a bestmove that is actually legal there.
func TestSearchReturnsLegalMove(t *testing.T) {
	pos := board.NewPosition()
	moves := []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6"}
	for _, s := range moves {
		m, err := board.ParseMove(s, pos)
		if err != nil {
			t.Fatalf("ParseMove(%s): %v", s, err)
		}
		if !pos.MakeMove(m) {
			t.Fatalf("illegal setup move %s", s)
		}
	}

	pool := NewPool(1, 4, nil)
	spec := SearchSpec{Root: pos, MaxDepth: 4}
	res := pool.Search(spec, nil)

	if len(res.PV) == 0 {
		t.Fatal("search returned an empty PV")
	}
	best := res.PV[0]

	legal := pos.GenerateLegalMoves()
	found := false
	for i := 0; i < legal.Len(); i++ {
		if legal.Get(i) == best {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("bestmove %s is not legal in the position", best.String())
	}
}

// TestSearchFindsMateInOne checks the search recognizes a one-move mate
// within a handful of plies (scalar sanity check on the mate-distance
// scoring and TT encoding working together end to end).
func TestSearchFindsMateInOne(t *testing.T) {
	// Back-rank mate: Ra8# for white to move.
	pos, err := board.ParseFEN("6k1/8/6K1/8/8/8/8/R7 w - -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	pool := NewPool(1, 4, nil)
	spec := SearchSpec{Root: pos, MaxDepth: 6}
	res := pool.Search(spec, nil)

	if res.Score < MateScore-MaxPly {
		t.Fatalf("expected a mate score, got %d", res.Score)
	}
	if len(res.PV) == 0 || res.PV[0].String() != "a1a8" {
		t.Fatalf("expected mating move a1a8, got PV %v", res.PV)
	}
}

// TestPoolStopReturnsPromptly checks a search bounded by a tiny soft-time
// budget completes instead of running to MaxDepth, so a stop or deadline
// always yields a bestmove within a bounded wall-clock window.
func TestPoolStopReturnsPromptly(t *testing.T) {
	pos := board.NewPosition()
	pool := NewPool(2, 4, nil)

	spec := SearchSpec{
		Root:     pos,
		MaxDepth: 64,
		Time:     TimeAllocation{Soft: time.Microsecond, Max: 50 * time.Millisecond},
	}
	res := pool.Search(spec, nil)
	if len(res.PV) == 0 {
		t.Fatal("time-bounded search returned no PV at all")
	}
	if res.Depth >= 64 {
		t.Errorf("search with a microsecond soft budget reached full depth %d", res.Depth)
	}
}
