package uci

import (
	"time"

	"github.com/hailam/lazysmp-chess/internal/board"
	"github.com/hailam/lazysmp-chess/internal/search"
)

// GoOptions holds the parsed arguments of one "go" command.
type GoOptions struct {
	Depth      int
	Nodes      uint64
	MoveTime   time.Duration
	Infinite   bool
	Ponder     bool
	WTime      time.Duration
	BTime      time.Duration
	WInc       time.Duration
	BInc       time.Duration
	MovesToGo  int
}

// moveOverhead is the "Move Overhead" UCI option: milliseconds reserved
// against GUI/network lag, subtracted from every computed budget so the
// engine never returns later than the GUI's own clock expects.
var moveOverhead = 50 * time.Millisecond

// SetMoveOverhead applies the "Move Overhead" setoption value.
func SetMoveOverhead(d time.Duration) { moveOverhead = d }

// TimeAllocation resolves one "go" command into the soft/max split the
// searcher consumes; the searcher never sees wtime/btime itself.
//
// Soft budget is a fraction of time-remaining-over-moves-to-go plus most
// of the increment; max budget is a hard multiple of soft that also never
// exceeds a safety fraction of total remaining time.
// Depth/node-only/infinite searches produce a zero TimeAllocation (no
// deadline).
func TimeAllocation(stm board.Color, pos *board.Position, opts GoOptions) search.TimeAllocation {
	if opts.Infinite {
		return search.TimeAllocation{}
	}
	if opts.MoveTime > 0 {
		mt := opts.MoveTime - moveOverhead
		if mt < time.Millisecond {
			mt = time.Millisecond
		}
		return search.TimeAllocation{Soft: mt, Max: mt}
	}

	var ourTime, ourInc time.Duration
	if stm == board.White {
		ourTime, ourInc = opts.WTime, opts.WInc
	} else {
		ourTime, ourInc = opts.BTime, opts.BInc
	}
	if ourTime <= 0 {
		return search.TimeAllocation{}
	}

	movesToGo := opts.MovesToGo
	if movesToGo <= 0 {
		movesToGo = estimateMovesRemaining(pos)
	}

	ourTime -= moveOverhead
	if ourTime < time.Millisecond {
		ourTime = time.Millisecond
	}

	base := ourTime / time.Duration(movesToGo)
	soft := base + ourInc*9/10
	maxBudget := ourTime * 3 / 4

	max := soft * 5
	if max > maxBudget {
		max = maxBudget
	}
	if soft > max {
		soft = max
	}
	if soft < time.Millisecond {
		soft = time.Millisecond
	}
	if max < soft {
		max = soft
	}
	return search.TimeAllocation{Soft: soft, Max: max}
}

// estimateMovesRemaining guesses how many moves the game has left from
// the piece count, when the GUI doesn't supply movestogo.
func estimateMovesRemaining(pos *board.Position) int {
	pieces := pos.AllOccupied.PopCount()
	switch {
	case pieces > 24:
		return 40
	case pieces > 12:
		return 30
	default:
		return 20
	}
}
