package nnue

import "github.com/hailam/lazysmp-chess/internal/board"

// Evaluator ties a shared, read-only Network to one worker's accumulator
// State, producing centipawn scores relative to the side to move.
type Evaluator struct {
	net   *Network
	state *State
}

// NewEvaluator returns an Evaluator over net, with a fresh accumulator
// stack. Call Refresh once with the root position before the first Evaluate.
func NewEvaluator(net *Network) *Evaluator {
	return &Evaluator{net: net, state: NewState(net)}
}

// Refresh rebuilds the current accumulator from scratch -- used at the
// search root, after ucinewgame, and whenever State.Update itself decides a
// full rebuild is cheaper than an incremental one.
func (e *Evaluator) Refresh(pos *board.Position) { e.state.Refresh(pos) }

// Push descends one ply, duplicating the current accumulator so Update can
// mutate the copy in place.
func (e *Evaluator) Push() { e.state.Push() }

// Pop returns to the parent ply's accumulator, undoing the last Update.
func (e *Evaluator) Pop() { e.state.Pop() }

// Update incrementally applies the just-made move to the current (already
// pushed) accumulator.
func (e *Evaluator) Update(posAfter *board.Position, move board.Move, captured board.Piece) {
	e.state.Update(posAfter, move, captured)
}

// Evaluate selects the side-to-move and opponent accumulators, picks the
// output bucket from the position's piece count, and runs the second
// layer.
func (e *Evaluator) Evaluate(pos *board.Position) int {
	acc := e.state.Current()
	pieceCount := pos.AllOccupied.PopCount()
	bucket := OutputBucket(pieceCount)

	if pos.SideToMove == board.White {
		return e.net.Forward(&acc.White, &acc.Black, bucket)
	}
	return e.net.Forward(&acc.Black, &acc.White, bucket)
}
