package board

import "testing"

// perft counts the leaf nodes reached by generate -> make (if legal) ->
// recurse -> undo. Out of check it generates pseudo-legal moves and
// discards illegal ones via MakeMove's own return value rather than
// pre-filtering; in check it uses GenerateEvasions, whose list is already
// filtered for legality.
func perft(p *Position, depth int) int64 {
	if depth == 0 {
		return 1
	}

	var ml MoveList
	if p.InCheck() {
		ml = *p.GenerateEvasions()
	} else {
		ml = *p.GeneratePseudoLegalMoves()
	}

	var nodes int64
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if !p.MakeMove(m) {
			continue
		}
		nodes += perft(p, depth-1)
		p.UnmakeMove()
	}
	return nodes
}

func TestPerftStartingPosition(t *testing.T) {
	cases := []struct {
		depth int
		want  int64
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
		{4, 197281},
	}

	for _, tc := range cases {
		pos := NewPosition()
		got := perft(pos, tc.depth)
		if got != tc.want {
			t.Errorf("perft(startpos, %d) = %d, want %d", tc.depth, got, tc.want)
		}
	}
}

func TestPerftKiwipete(t *testing.T) {
	pos, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	cases := []struct {
		depth int
		want  int64
	}{
		{1, 48},
		{2, 2039},
		{3, 97862},
	}
	for _, tc := range cases {
		got := perft(pos, tc.depth)
		if got != tc.want {
			t.Errorf("perft(kiwipete, %d) = %d, want %d", tc.depth, got, tc.want)
		}
	}
}

// TestPerftPosition3 is the well-known "position 3" perft suite entry,
// heavy on en-passant and pawn-endgame edge cases.
func TestPerftPosition3(t *testing.T) {
	pos, err := ParseFEN("8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	cases := []struct {
		depth int
		want  int64
	}{
		{1, 14},
		{2, 191},
		{3, 2812},
		{4, 43238},
	}
	for _, tc := range cases {
		got := perft(pos, tc.depth)
		if got != tc.want {
			t.Errorf("perft(pos3, %d) = %d, want %d", tc.depth, got, tc.want)
		}
	}
}

// TestMakeUndoSymmetry checks that for any legal move applied to a
// position, undo restores it byte-for-byte, including the game-state
// fields, hash, and cookie-stack depth.
func TestMakeUndoSymmetry(t *testing.T) {
	pos := NewPosition()
	beforeFEN := pos.ToFEN()
	beforeHash := pos.Hash
	beforeDepth := pos.CookieDepth()

	ml := pos.GeneratePseudoLegalMoves()
	applied := 0
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		snapHash := pos.Hash
		snapDepth := pos.CookieDepth()
		if !pos.MakeMove(m) {
			continue
		}
		applied++
		if pos.Hash != pos.ComputeHash() {
			t.Fatalf("move %s: incremental hash drifted from recompute after make", m.String())
		}
		pos.UnmakeMove()
		if pos.Hash != snapHash {
			t.Fatalf("move %s: hash not restored by undo", m.String())
		}
		if pos.CookieDepth() != snapDepth {
			t.Fatalf("move %s: cookie stack depth not restored", m.String())
		}
	}
	if applied == 0 {
		t.Fatal("no legal moves applied from starting position")
	}
	if pos.Hash != beforeHash {
		t.Fatal("hash drifted across the whole make/undo sweep")
	}
	if pos.CookieDepth() != beforeDepth {
		t.Fatal("cookie stack depth drifted across the whole make/undo sweep")
	}
	if pos.ToFEN() != beforeFEN {
		t.Fatal("position not restored to identical FEN after full make/undo sweep")
	}
}

// TestHashInvariant walks a short forced line and checks the incremental
// hash matches a from-scratch recompute after every make.
func TestHashInvariant(t *testing.T) {
	pos := NewPosition()
	moves := []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6"}
	for _, s := range moves {
		m, err := ParseMove(s, pos)
		if err != nil {
			t.Fatalf("ParseMove(%s): %v", s, err)
		}
		if !pos.MakeMove(m) {
			t.Fatalf("illegal move in forced line: %s", s)
		}
		if pos.Hash != pos.ComputeHash() {
			t.Fatalf("after %s: hash=%x recomputed=%x", s, pos.Hash, pos.ComputeHash())
		}
	}
}

// TestEnPassantTargetDropped: the EP target only stays live when an
// adjacent enemy pawn can actually capture it.
func TestEnPassantTargetDropped(t *testing.T) {
	pos, err := ParseFEN("rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	// No white pawn adjacent to e6 can capture it (d5/f5 are empty), so the
	// parser must drop the EP target.
	if pos.EnPassant != NoSquare {
		t.Errorf("EP target kept despite no adjacent capturing pawn: %v", pos.EnPassant)
	}
}

// TestCastlingRightsClearedOnCastle: after castling, the moving side's
// rights are cleared and the rook lands on its post-castle square.
func TestCastlingRightsClearedOnCastle(t *testing.T) {
	pos, err := ParseFEN("4k3/8/8/8/8/8/8/4K2R w K - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	m := NewCastling(E1, G1, NewPiece(King, White))
	if !pos.MakeMove(m) {
		t.Fatal("castle move rejected as illegal")
	}
	if pos.CastlingRights&WhiteKingSideCastle != 0 {
		t.Error("white kingside right not cleared after castling")
	}
	if pos.PieceAt(F1) != NewPiece(Rook, White) {
		t.Error("rook did not land on f1 after O-O")
	}
}

// TestFourPromotionsDistinct: the four promotion moves generated for one
// push must be four distinct (move,promo) integers.
func TestFourPromotionsDistinct(t *testing.T) {
	pos, err := ParseFEN("4k3/P7/8/8/8/8/8/4K3 w - -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	ml := pos.GeneratePseudoLegalMoves()
	seen := map[Move]bool{}
	promos := 0
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if m.IsPromotion() && m.From() == A7 && m.To() == A8 {
			if seen[m] {
				t.Fatalf("duplicate promotion move encoding: %v", m)
			}
			seen[m] = true
			promos++
		}
	}
	if promos != 4 {
		t.Fatalf("expected 4 distinct promotions from a7a8, got %d", promos)
	}
}
