package order

import (
	"testing"

	"github.com/hailam/lazysmp-chess/internal/board"
)

// TestSeeEqualTrade: when the only recapturer is of equal value to the
// victim, SEE is 0.
func TestSeeEqualTrade(t *testing.T) {
	// White rook d1 takes the black rook on d5, and the rook on d8 is the
	// only recapturer: a full rook-for-rook trade nets exactly zero.
	pos, err := board.ParseFEN("3rk3/8/8/3r4/8/8/8/3RK3 w - -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	m, err := board.ParseMove("d1d5", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if got := See(pos, m); got != 0 {
		t.Errorf("See(RxR, no other attackers) = %d, want 0", got)
	}
}

// TestSeeWinningCapture checks a pawn capturing an undefended queen scores
// strictly positive. The losing-capture case is covered by
// TestSeeLosingCapturePruned.
func TestSeeWinningCapture(t *testing.T) {
	pos, err := board.ParseFEN("4k3/8/8/3q4/4P3/8/8/4K3 w - -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	m, err := board.ParseMove("e4d5", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if got := See(pos, m); got <= 0 {
		t.Errorf("See(pawn takes undefended queen) = %d, want > 0", got)
	}
}

func TestSeeLosingCapturePruned(t *testing.T) {
	// White queen on d1 takes black rook on d5, which is defended by a
	// black pawn on c6/e6 -- net loss of queen for rook.
	pos, err := board.ParseFEN("4k3/8/2p1p3/3r4/8/8/8/3QK3 w - -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	m, err := board.ParseMove("d1d5", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if got := See(pos, m); got >= 0 {
		t.Errorf("See(QxR, pawn-defended) = %d, want < 0", got)
	}

	ml := board.MoveList{}
	ml.Add(m)
	SeePrune(pos, &ml)
	if ml.Len() != 0 {
		t.Errorf("SeePrune kept a losing capture, len=%d", ml.Len())
	}
}
