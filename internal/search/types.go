// Package search implements the parallel Lazy-SMP alpha-beta searcher: a
// fixed pool of persistent workers, each running principal variation
// search with quiescence, the usual pruning pipeline, and move ordering
// backed by the shared transposition table.
package search

import (
	"time"

	"github.com/hailam/lazysmp-chess/internal/board"
	"github.com/hailam/lazysmp-chess/internal/nnue"
	"github.com/hailam/lazysmp-chess/internal/tt"
)

// MaxPly bounds every per-ply array a worker keeps: the PV buffer, killer
// slots, static-eval history, and search-path repetition buffer.
const MaxPly = 64

// Infinity and MateScore bound the search window; MateScore matches the
// transposition table's own mate-distance encoding constant so scores pass
// between the two without rescaling.
const (
	Infinity  = 32001
	MateScore = tt.MateScore
)

// TimeAllocation is the only time-management input the searcher consumes:
// the soft/max split internal/uci computes from
// wtime/btime/increments/movestogo. Time policy itself lives outside this
// package.
type TimeAllocation struct {
	Soft time.Duration
	Max  time.Duration
}

// SearchSpec is everything one root search needs: the starting position,
// the hashes of the positions the UCI `position` command played through,
// ending with the root (for repetition detection below the root), the
// allotted time, and
// optional hard caps a UCI `go` command can specify directly.
type SearchSpec struct {
	Root         *board.Position
	GameHistory  []uint64
	Time         TimeAllocation
	MaxDepth     int
	MaxNodes     uint64
	Infinite     bool
}

// SearchFrame is one ply's scratch state: a PV buffer, the static eval at
// this ply (for the improving heuristic), and the move played/excluded at
// this ply (the latter for singular-extension verification, the former
// for continuation-history indexing by the child).
type SearchFrame struct {
	PV         [MaxPly]board.Move
	PVLen      int
	StaticEval int
	PlayedMove board.Move
	Excluded   board.Move
}

// Info is the progress snapshot the pool publishes after each of the main
// worker's completed iterative-deepening iterations, matching the UCI
// `info` line's fields. Score is centipawns unless it falls in the mate
// window, which the UCI layer converts to `mate N` itself.
type Info struct {
	Depth    int
	SelDepth int
	Score    int
	Nodes    uint64
	NPS      uint64
	Time     time.Duration
	HashFull int
	PV       []board.Move
}

// InfoHandler receives Info snapshots during search; the UCI layer
// implements this to format and print `info` lines.
type InfoHandler interface {
	OnInfo(Info)
}

// Evaluator abstracts the position evaluation the worker calls at leaf and
// pruning-decision nodes, so the searcher depends on an interface rather
// than the concrete nnue package directly -- the material fallback used
// when no weight file loaded is just a second implementation.
type Evaluator interface {
	Refresh(pos *board.Position)
	Push()
	Pop()
	Update(posAfter *board.Position, move board.Move, captured board.Piece)
	Evaluate(pos *board.Position) int
}

var _ Evaluator = (*nnue.Evaluator)(nil)

// materialEvaluator is the fallback when no weight file loaded: a plain
// material count from the side to move's perspective. It implements
// Evaluator with no-op accumulator maintenance, since material counting
// needs no incremental state.
type materialEvaluator struct{}

// NewMaterialEvaluator returns the stateless material-only fallback
// evaluator.
func NewMaterialEvaluator() Evaluator { return materialEvaluator{} }

func (materialEvaluator) Refresh(*board.Position)                                 {}
func (materialEvaluator) Push()                                                   {}
func (materialEvaluator) Pop()                                                    {}
func (materialEvaluator) Update(*board.Position, board.Move, board.Piece)         {}
func (materialEvaluator) Evaluate(pos *board.Position) int {
	m := pos.Material()
	if pos.SideToMove == board.Black {
		return -m
	}
	return m
}
