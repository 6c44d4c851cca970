package nnue

import "github.com/hailam/lazysmp-chess/internal/board"

// Accumulator holds the two per-perspective hidden-layer vectors,
// HL=1536 int16 each.
type Accumulator struct {
	White [HL]int16
	Black [HL]int16
}

// maxStackDepth bounds the per-worker accumulator stack: the searcher's
// 64-ply ceiling plus the margin extensions can push past it.
const maxStackDepth = 128

// State is the per-worker accumulator stack: created once per worker and
// incrementally updated through the search tree. It is never shared
// across workers the way the transposition table is.
type State struct {
	net   *Network
	stack [maxStackDepth]Accumulator
	top   int

	// bucket caches the input bucket each perspective was last refreshed
	// with, one slot per stack depth (not a single shared value) so that
	// Pop returning to an ancestor ply sees that ancestor's own king
	// bucket rather than a descendant's, in case the descendant's subtree
	// crossed a king bucket boundary and forced its own refresh.
	bucket [maxStackDepth][2]int
}

// NewState returns a State bound to net, ready for Refresh at the root.
func NewState(net *Network) *State {
	return &State{net: net}
}

// Current returns the accumulator at the top of the stack -- the one
// consumed by Evaluate and mutated by Update.
func (s *State) Current() *Accumulator { return &s.stack[s.top] }

// Push duplicates the current accumulator onto a new stack slot, to be
// mutated in place by the following Update call. The caller invokes this
// before Update, mirroring the position's own cookie-stack discipline:
// one Push per ply descended, one Pop per ply returned from.
func (s *State) Push() {
	if s.top+1 >= maxStackDepth {
		return
	}
	s.stack[s.top+1] = s.stack[s.top]
	s.bucket[s.top+1] = s.bucket[s.top]
	s.top++
}

// Pop discards the current accumulator and returns to the parent ply's.
// Because Push always captured an exact copy of the parent state before
// Update mutated the child, Pop is by construction the exact inverse of
// Push+Update; no feature delta needs re-deriving on the way back up.
func (s *State) Pop() {
	if s.top == 0 {
		return
	}
	s.top--
}

// Reset returns the stack to its root slot, for a new search root.
func (s *State) Reset() { s.top = 0 }

// Refresh recomputes both perspective accumulators from scratch using the
// current king buckets.
func (s *State) Refresh(pos *board.Position) {
	acc := s.Current()
	s.refreshInto(acc, pos)
}

func (s *State) refreshInto(acc *Accumulator, pos *board.Position) {
	wBucket := KingBucket(pos.KingSquare[board.White], board.White)
	bBucket := KingBucket(pos.KingSquare[board.Black], board.Black)
	s.bucket[s.top][board.White] = wBucket
	s.bucket[s.top][board.Black] = bBucket

	acc.White = s.net.L1Bias
	acc.Black = s.net.L1Bias

	var buf [32]int
	whiteFeatures := activeFeatures(pos, board.White, buf[:0])
	for _, idx := range whiteFeatures {
		addFeature(&acc.White, &s.net.L1Weights[idx][wBucket])
	}

	var buf2 [32]int
	blackFeatures := activeFeatures(pos, board.Black, buf2[:0])
	for _, idx := range blackFeatures {
		addFeature(&acc.Black, &s.net.L1Weights[idx][bBucket])
	}
}

func addFeature(acc *[HL]int16, w *[HL]int16) {
	for i := 0; i < HL; i++ {
		acc[i] += w[i]
	}
}

func subFeature(acc *[HL]int16, w *[HL]int16) {
	for i := 0; i < HL; i++ {
		acc[i] -= w[i]
	}
}

// change describes one added or removed (piece, square) pair for an
// incremental accumulator update.
type change struct {
	piece board.Piece
	sq    board.Square
}

// crossesKingBucket reports whether a king move changes its own input
// bucket, either by crossing the d/e file boundary or by landing in a
// different KingBucket bin -- the trigger for forcing a full refresh
// instead of an incremental update.
func crossesKingBucket(from, to board.Square, side board.Color) bool {
	fromFile := int(from) % 8
	toFile := int(to) % 8
	if (fromFile <= 3) != (toFile <= 3) {
		return true
	}
	return KingBucket(from, side) != KingBucket(to, side)
}

// Update incrementally adjusts the current (already-pushed) accumulator
// for the move just made. Castling, and king moves that cross an input
// bucket boundary, fall back to a full Refresh instead.
func (s *State) Update(posAfter *board.Position, move board.Move, capturedPiece board.Piece) {
	mover := move.Mover()
	us := mover.Color()

	if move.IsCastling() || (mover.Type() == board.King && crossesKingBucket(move.From(), move.To(), us)) {
		s.refreshInto(s.Current(), posAfter)
		return
	}

	removed, added := moveDelta(move, mover, capturedPiece)
	s.applyDelta(s.Current(), removed, added)
}

// UndoUpdate is the exact inverse of Update, computed against the
// pre-move board so king-bucket checks agree with the ones Update made.
// Workers that maintain the Push/Pop stack discipline get this for free via
// Pop; this direct form exists for callers that mutate a single retained
// Accumulator instead of a stack (e.g. a standalone evaluator).
func (s *State) UndoUpdate(posBefore *board.Position, move board.Move, capturedPiece board.Piece) {
	mover := move.Mover()
	us := mover.Color()

	if move.IsCastling() || (mover.Type() == board.King && crossesKingBucket(move.From(), move.To(), us)) {
		s.refreshInto(s.Current(), posBefore)
		return
	}

	removed, added := moveDelta(move, mover, capturedPiece)
	// Undo is Update's arithmetic inverse: re-add what was removed, and
	// remove what was added.
	s.applyDelta(s.Current(), added, removed)
}

func moveDelta(move board.Move, mover, capturedPiece board.Piece) (removed, added []change) {
	us := mover.Color()
	removed = append(removed, change{mover, move.From()})

	if capturedPiece != board.NoPiece {
		capSq := move.To()
		if move.IsEnPassant() {
			if us == board.White {
				capSq = move.To() - 8
			} else {
				capSq = move.To() + 8
			}
		}
		removed = append(removed, change{capturedPiece, capSq})
	}

	if move.IsPromotion() {
		added = append(added, change{board.NewPiece(move.Promotion(), us), move.To()})
	} else {
		added = append(added, change{mover, move.To()})
	}
	return removed, added
}

func (s *State) applyDelta(acc *Accumulator, removed, added []change) {
	wBucket := s.bucket[s.top][board.White]
	bBucket := s.bucket[s.top][board.Black]

	for _, c := range removed {
		wIdx := featureIndex(c.piece.Color(), c.piece.Type(), c.sq, board.White)
		bIdx := featureIndex(c.piece.Color(), c.piece.Type(), c.sq, board.Black)
		subFeature(&acc.White, &s.net.L1Weights[wIdx][wBucket])
		subFeature(&acc.Black, &s.net.L1Weights[bIdx][bBucket])
	}
	for _, c := range added {
		wIdx := featureIndex(c.piece.Color(), c.piece.Type(), c.sq, board.White)
		bIdx := featureIndex(c.piece.Color(), c.piece.Type(), c.sq, board.Black)
		addFeature(&acc.White, &s.net.L1Weights[wIdx][wBucket])
		addFeature(&acc.Black, &s.net.L1Weights[bIdx][bBucket])
	}
}
