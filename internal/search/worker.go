package search

import (
	"math"
	"sync/atomic"

	"github.com/hailam/lazysmp-chess/internal/board"
	"github.com/hailam/lazysmp-chess/internal/order"
	"github.com/hailam/lazysmp-chess/internal/tt"
)

// lmr is the precomputed late-move-reduction table, the usual logarithmic
// formula: reduction grows with both depth and move index, flattening out
// as either grows.
var lmr [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmr[d][m] = int(21.46 * math.Log(float64(d)) * math.Log(float64(m)) / 1024.0)
		}
	}
}

// Pruning margins and depth gates.
const (
	razorMaxDepth = 4
	razorMargin   = 180

	rfpMaxDepth = 8
	rfpBase     = 75
	rfpBonus    = 50

	nmpMinDepth  = 3
	nmpEvalCap   = 3

	lmpA = 3
	lmpB = 4

	iirMinDepth = 7

	seMinDepth = 6
)

// Worker is one Lazy-SMP search thread: a root position clone, its own
// move-ordering state (killers, history, counter-moves), its own NNUE
// accumulator stack, and a pointer to the pool-shared transposition table.
// Workers never share anything but the TT.
type Worker struct {
	ID int

	pos   *board.Position
	eval  Evaluator
	tt    *tt.Table
	order *order.OrderContext
	hist  *order.History
	corr  *CorrectionHistory

	stack [MaxPly + 8]SearchFrame

	staticEvalStack [MaxPly + 8]int
	searchPath      [MaxPly + 8]uint64
	gameHistory     []uint64

	// nullMoveAtPly[p] is true while the node entered at ply p was reached
	// by a null move, so null-move pruning at p never tries two null moves
	// in a row.
	nullMoveAtPly [MaxPly + 8]bool

	nodes    atomic.Uint64
	selDepth int

	stop *atomic.Bool

	softDeadline int64 // unix nanos, checked only by the main worker
	hardDeadline int64 // unix nanos, checked by every worker
	nowFn        func() int64

	// quietBuf avoids an allocation per node for the quiet moves a
	// beta cutoff needs to apply history malus to.
	quietBuf [256]board.Move
}

// NewWorker returns a worker bound to the shared TT and an evaluator; the
// caller must call SetRoot before the first Run.
func NewWorker(id int, table *tt.Table, eval Evaluator, stop *atomic.Bool, nowFn func() int64) *Worker {
	h := order.NewHistory()
	return &Worker{
		ID:    id,
		tt:    table,
		eval:  eval,
		order: order.NewOrderContext(h),
		hist:  h,
		corr:  NewCorrectionHistory(),
		stop:  stop,
		nowFn: nowFn,
	}
}

// SetRoot clones root into the worker's own position and resets per-search
// state: node counter, seldepth and killer slots, and refreshes the
// evaluator's accumulator from the new root. History and correction tables
// are kept unless the caller also calls ClearHistory.
func (w *Worker) SetRoot(root *board.Position, gameHistory []uint64) {
	w.pos = root.Copy()
	w.gameHistory = gameHistory
	w.nodes.Store(0)
	w.selDepth = 0
	w.order.Clear()
	w.eval.Refresh(w.pos)
}

// ClearHistory resets move-ordering and correction history, for
// `ucinewgame`.
func (w *Worker) ClearHistory() {
	w.hist.Clear()
	w.order.Clear()
	w.corr.Clear()
}

// Nodes returns this worker's node counter. Safe to read from another
// goroutine mid-search (the pool sums it for info lines and the final
// aggregate).
func (w *Worker) Nodes() uint64 { return w.nodes.Load() }

// SelDepth returns the deepest ply this worker reached in the current
// search.
func (w *Worker) SelDepth() int { return w.selDepth }

// Deadlines sets the soft (main worker only) and hard wall-clock deadlines
// in unix nanoseconds, derived once from the pool's TimeAllocation.
func (w *Worker) Deadlines(soft, hard int64) {
	w.softDeadline = soft
	w.hardDeadline = hard
}

// IterationResult is what one completed (or partially completed but
// unabandoned) iterative-deepening depth produced.
type IterationResult struct {
	Depth int
	Score int
	PV    []board.Move
}

// Run drives iterative deepening from depth 1 to spec.MaxDepth (or until
// stopped), returning every completed iteration's result in order. The
// caller (pool) decides which worker's last result wins via its voting
// formula.
func (w *Worker) Run(spec SearchSpec, onInfo func(IterationResult, uint64)) []IterationResult {
	maxDepth := spec.MaxDepth
	if maxDepth <= 0 || maxDepth > MaxPly {
		maxDepth = MaxPly
	}

	var results []IterationResult
	score := 0
	for depth := 1; depth <= maxDepth; depth++ {
		if w.stop.Load() {
			break
		}

		s, pv, completed := w.searchAspiration(depth, score)
		if !completed {
			break
		}
		score = s
		res := IterationResult{Depth: depth, Score: score, PV: pv}
		results = append(results, res)
		if onInfo != nil {
			onInfo(res, w.Nodes())
		}

		if w.ID == 0 && w.softTimeUp() {
			break
		}
		if spec.MaxNodes > 0 && w.Nodes() >= spec.MaxNodes {
			break
		}
	}
	return results
}

// searchAspiration runs one iterative-deepening depth with an aspiration
// window around the previous score, widening on fail-low/fail-high and
// falling back to a full window for shallow depths and near-mate scores.
func (w *Worker) searchAspiration(depth, prevScore int) (int, []board.Move, bool) {
	if depth < 4 || absInt(prevScore) >= MateScore-MaxPly {
		score := w.pvs(depth, -Infinity, Infinity, 0, false)
		if w.stop.Load() {
			return 0, nil, false
		}
		return score, w.pv(), true
	}

	delta := 10
	alpha := prevScore - delta
	beta := prevScore + delta

	for {
		score := w.pvs(depth, alpha, beta, 0, false)
		if w.stop.Load() {
			return 0, nil, false
		}
		if score <= alpha {
			alpha -= delta
			if alpha < -Infinity {
				alpha = -Infinity
			}
		} else if score >= beta {
			beta += delta
			if beta > Infinity {
				beta = Infinity
			}
		} else {
			return score, w.pv(), true
		}
		delta = delta * 3 / 2
		if w.hardTimeUp() {
			return 0, nil, false
		}
	}
}

func (w *Worker) pv() []board.Move {
	f := &w.stack[0]
	out := make([]board.Move, f.PVLen)
	copy(out, f.PV[:f.PVLen])
	return out
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// softTimeUp and hardTimeUp back the deadline polling, never mid-node:
// hardTimeUp is checked every 2048 nodes and between aspiration
// re-searches; softTimeUp is checked by the main worker between iterations.
func (w *Worker) softTimeUp() bool {
	return w.softDeadline != 0 && w.nowFn() >= w.softDeadline
}

func (w *Worker) hardTimeUp() bool {
	return w.hardDeadline != 0 && w.nowFn() >= w.hardDeadline
}

// pvs is the principal-variation-search node function.
func (w *Worker) pvs(depth, alpha, beta, ply int, cutNode bool) int {
	pos := w.pos
	frame := &w.stack[ply]
	frame.PVLen = 0

	isPV := beta-alpha > 1

	// Step 1: repetition / fifty-move draw.
	w.searchPath[ply] = pos.Hash
	if ply > 0 && w.isDraw(ply) {
		return 0
	}

	// Step 2: mate-distance pruning.
	if alpha < ply-MateScore {
		alpha = ply - MateScore
	}
	if beta > MateScore-ply-1 {
		beta = MateScore - ply - 1
	}
	if alpha >= beta {
		return alpha
	}

	// Step 3: drop into quiescence at the leaf.
	if depth <= 0 {
		return w.quiescence(alpha, beta, ply)
	}

	// Step 4: cooperative stop polling.
	if n := w.nodes.Add(1); n&2047 == 0 {
		if w.stop.Load() || w.hardTimeUp() {
			w.stop.Store(true)
			return 0
		}
	}
	if ply > w.selDepth {
		w.selDepth = ply
	}

	inCheck := pos.InCheck()
	var ttMove board.Move
	entry, hit := w.tt.Probe(pos, pos.Hash, ply)

	// Step 5: TT cutoff for non-PV nodes.
	if hit {
		ttMove = entry.Move
		if !isPV && entry.Depth >= depth {
			switch entry.Bound {
			case tt.BoundExact:
				return entry.Score
			case tt.BoundLower:
				if entry.Score >= beta {
					return entry.Score
				}
			case tt.BoundUpper:
				if entry.Score <= alpha {
					return entry.Score
				}
			}
		}
	}

	// Step 6: check extension.
	if inCheck {
		depth++
	}

	// Step 7: static eval, refined by a usable TT bound.
	var staticEval int
	if inCheck {
		staticEval = -MateScore + ply
	} else if hit && entry.StaticEval != 0 {
		staticEval = entry.StaticEval
	} else {
		staticEval = w.eval.Evaluate(pos)
	}
	staticEval += w.corr.Get(pos)
	if hit && !inCheck {
		if entry.Bound == tt.BoundLower && entry.Score > staticEval {
			staticEval = entry.Score
		} else if entry.Bound == tt.BoundUpper && entry.Score < staticEval {
			staticEval = entry.Score
		}
	}
	frame.StaticEval = staticEval
	w.staticEvalStack[ply] = staticEval

	// Step 8: improving -- is static eval trending up relative to our own
	// last move, i.e. two plies back. ply < 2 has no such predecessor in
	// this line, so improving is left false rather than compared against
	// the search root's unrelated static eval.
	improving := false
	if !inCheck && ply >= 2 {
		improving = staticEval > w.staticEvalStack[ply-2]
	}

	canPrune := !isPV && !inCheck && absInt(staticEval) < MateScore-MaxPly

	// Step 9: razoring / reverse futility / null-move pruning.
	if canPrune {
		if depth <= razorMaxDepth && staticEval <= alpha-razorMargin*depth {
			score := w.quiescence(alpha-1, alpha, ply)
			if score < alpha {
				return score
			}
		}

		if depth <= rfpMaxDepth {
			bonus := 0
			if improving {
				bonus = rfpBonus
			}
			if staticEval-(rfpBase*depth-bonus) >= beta {
				return staticEval
			}
		}

		if depth >= nmpMinDepth && staticEval >= beta && pos.HasNonPawnMaterial() && !w.nullMoveAtPly[ply] {
			reduction := 3 + depth/5
			if cap := (staticEval - beta) / 200; cap < nmpEvalCap {
				reduction += cap
			} else {
				reduction += nmpEvalCap
			}
			undo := pos.MakeNullMove()
			w.eval.Push()
			w.nullMoveAtPly[ply+1] = true
			score := -w.pvs(depth-reduction, -beta, -beta+1, ply+1, !cutNode)
			w.nullMoveAtPly[ply+1] = false
			w.eval.Pop()
			pos.UnmakeNullMove(undo)
			if w.stop.Load() {
				return 0
			}
			if score >= beta && absInt(score) < MateScore-MaxPly {
				return beta
			}
		}
	}

	// Step 10: internal iterative reduction.
	if (cutNode || isPV) && depth >= iirMinDepth && (!hit || entry.Depth < depth-4) {
		depth--
		if depth >= iirMinDepth {
			depth--
		}
	}

	// Step 11: singular extensions. The extension applies to the TT move
	// alone, not the whole node.
	singularExtension := 0
	if ply > 0 && depth >= seMinDepth && hit && ttMove != board.NoMove &&
		entry.Bound != tt.BoundUpper && entry.Depth >= depth-3 &&
		absInt(entry.Score) < MateScore-MaxPly && frame.Excluded == board.NoMove {
		sBeta := entry.Score - 2*depth
		frame.Excluded = ttMove
		seScore := w.pvs(depth/2, sBeta-1, sBeta, ply, cutNode)
		frame.Excluded = board.NoMove
		if seScore < sBeta {
			singularExtension = 1
		}
	}

	// Step 12: generate moves (evasions if in check, else captures+quiets);
	// ordering is lazy -- PickMove below selects and swaps the best-scoring
	// remaining move into place one index at a time, so a beta cutoff never
	// pays to score moves it never tries.
	var ml board.MoveList
	if inCheck {
		ml = *pos.GenerateEvasions()
	} else {
		ml = *pos.GeneratePseudoLegalMoves()
	}
	if ml.Len() == 0 {
		if inCheck {
			return ply - MateScore
		}
		return 0
	}

	bestScore := -Infinity
	bestMove := board.NoMove
	bound := tt.BoundUpper
	movesTried := 0
	quietCount := 0
	legalMoves := 0

	for i := 0; i < ml.Len(); i++ {
		order.PickMove(pos, &ml, w.order, ttMove, ply, i, prevMove(w, ply-1), prevMove(w, ply-2))
		m := ml.Get(i)
		if m == frame.Excluded {
			continue
		}

		isCapture := m.IsCapture(pos)
		isQuiet := !isCapture && !m.IsPromotion()

		// Step 13: SEE pruning / LMP on quiets. Never prunes before at
		// least one legal move has been searched, so a node whose every
		// move is a prunable loser still gets a real score instead of
		// falling through to the no-legal-move (stalemate) path.
		if canPrune && !isPV && legalMoves > 0 {
			if !isQuiet && depth <= 8 && order.See(pos, m) < -20*depth {
				continue
			}
			if isQuiet {
				lmpDivisor := 2
				if improving {
					lmpDivisor = 1
				}
				if movesTried > (lmpA*depth*depth+lmpB)/lmpDivisor {
					continue
				}
			}
		}

		capturedPiece := capturedPieceFor(pos, m)
		if !pos.MakeMove(m) {
			continue
		}
		legalMoves++
		movesTried++
		w.eval.Push()
		w.eval.Update(pos, m, capturedPiece)
		frame.PlayedMove = m

		if isQuiet && quietCount < len(w.quietBuf) {
			w.quietBuf[quietCount] = m
			quietCount++
		}

		childDepth := depth - 1
		if m == ttMove {
			childDepth += singularExtension
		}
		var score int
		if legalMoves == 1 {
			score = -w.pvs(childDepth, -beta, -alpha, ply+1, false)
		} else {
			reduction := 0
			if isQuiet && depth >= 3 && i >= 1 {
				reduction = lmr[clamp(depth, 0, 63)][clamp(i, 0, 63)]
				if !isPV {
					reduction++
				} else {
					reduction--
				}
				if cutNode {
					reduction++
				}
				if improving {
					reduction--
				}
				if reduction < 0 {
					reduction = 0
				}
				if childDepth-reduction < 1 {
					reduction = childDepth - 1
				}
			}

			score = -w.pvs(childDepth-reduction, -alpha-1, -alpha, ply+1, true)
			if score > alpha && reduction > 0 {
				score = -w.pvs(childDepth, -alpha-1, -alpha, ply+1, !cutNode)
			}
			if score > alpha && (isPV && (legalMoves == 1 || score < beta)) {
				score = -w.pvs(childDepth, -beta, -alpha, ply+1, false)
			}
		}

		w.eval.Pop()
		pos.UnmakeMove()

		if w.stop.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
				bound = tt.BoundExact
				frame.PV[0] = m
				copy(frame.PV[1:], w.stack[ply+1].PV[:w.stack[ply+1].PVLen])
				frame.PVLen = w.stack[ply+1].PVLen + 1
			}
		}

		if score >= beta {
			bound = tt.BoundLower
			if isQuiet {
				w.hist.UpdateQuiet(pos, depth, m, w.quietBuf[:quietCount], prevMove(w, ply-1), prevMove(w, ply-2))
				w.order.UpdateKillers(ply, m)
			}
			if frame.Excluded == board.NoMove {
				w.tt.Store(pos.Hash, ply, bestMove, bestScore, staticEval, depth, bound, isPV)
			}
			return bestScore
		}
	}

	// Step 14: no legal move.
	if legalMoves == 0 {
		if frame.Excluded != board.NoMove {
			// Singular-extension verification search: report the static
			// bound rather than a mate/stalemate score.
			return alpha
		}
		if inCheck {
			return ply - MateScore
		}
		return 0
	}

	// Step 16: TT store. A singular-verification search (Excluded set)
	// never stores -- its score is skewed by the missing TT move and would
	// poison later probes of the unexcluded position.
	if frame.Excluded == board.NoMove {
		if !inCheck && !w.stop.Load() {
			w.corr.Update(pos, bestScore, staticEval, depth)
		}
		w.tt.Store(pos.Hash, ply, bestMove, bestScore, staticEval, depth, bound, isPV)
	}
	return bestScore
}

// capturedPieceFor returns the piece a move would capture, resolving
// en-passant's offset square instead of the (empty) destination square, so
// the NNUE accumulator update sees the real removed piece.
func capturedPieceFor(pos *board.Position, m board.Move) board.Piece {
	if m.IsEnPassant() {
		them := pos.SideToMove.Other()
		return board.NewPiece(board.Pawn, them)
	}
	return pos.PieceAt(m.To())
}

func prevMove(w *Worker, ply int) board.Move {
	if ply < 0 {
		return board.NoMove
	}
	return w.stack[ply].PlayedMove
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// isDraw walks the repetition path: back up the ply by 2 up to the
// halfmove clock, then continue into the pre-root game history.
func (w *Worker) isDraw(ply int) bool {
	pos := w.pos
	if pos.HalfMoveClock >= 100 {
		return true
	}
	if pos.IsInsufficientMaterial() {
		return true
	}

	h := pos.Hash
	limit := pos.HalfMoveClock
	steps := 0
	for p := ply - 2; p >= 0 && steps < limit; p -= 2 {
		steps += 2
		if w.searchPath[p] == h {
			return true
		}
	}
	for i := len(w.gameHistory) - 3 + ply - steps; i >= 0 && steps < limit; i -= 2 {
		steps += 2
		if w.gameHistory[i] == h {
			return true
		}
	}
	return false
}

// quiescence searches until the position goes quiet: stand-pat when not
// in check, full evasion search when in check, otherwise captures only
// with SEE pruning.
func (w *Worker) quiescence(alpha, beta, ply int) int {
	if ply >= MaxPly {
		return w.eval.Evaluate(w.pos)
	}

	if n := w.nodes.Add(1); n&2047 == 0 && (w.stop.Load() || w.hardTimeUp()) {
		w.stop.Store(true)
		return 0
	}

	pos := w.pos
	inCheck := pos.InCheck()

	frame := &w.stack[ply]
	frame.PVLen = 0

	var bestScore int
	staticEval := 0
	var ml board.MoveList
	if inCheck {
		bestScore = -Infinity
		ml = *pos.GenerateEvasions()
		if ml.Len() == 0 {
			return ply - MateScore
		}
	} else {
		staticEval = w.eval.Evaluate(pos) + w.corr.Get(pos)
		bestScore = staticEval
		if staticEval >= beta {
			return staticEval
		}
		if staticEval > alpha {
			alpha = staticEval
		}
		ml = *pos.GenerateCaptures()
	}

	var ttMove board.Move
	if entry, hit := w.tt.Probe(pos, pos.Hash, ply); hit {
		ttMove = entry.Move
	}

	bestMove := board.NoMove
	for i := 0; i < ml.Len(); i++ {
		order.PickMove(pos, &ml, w.order, ttMove, ply, i, board.NoMove, board.NoMove)
		m := ml.Get(i)
		if !inCheck && order.See(pos, m) < -1 {
			continue
		}

		capturedPiece := capturedPieceFor(pos, m)
		if !pos.MakeMove(m) {
			continue
		}
		w.eval.Push()
		w.eval.Update(pos, m, capturedPiece)

		score := -w.quiescence(-beta, -alpha, ply+1)

		w.eval.Pop()
		pos.UnmakeMove()

		if w.stop.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
			}
		}
		if score >= beta {
			w.tt.Store(pos.Hash, ply, m, score, staticEval, 0, tt.BoundLower, false)
			return score
		}
	}

	bound := tt.BoundUpper
	if bestMove != board.NoMove {
		bound = tt.BoundExact
	}
	w.tt.Store(pos.Hash, ply, bestMove, bestScore, staticEval, 0, bound, false)
	return bestScore
}
