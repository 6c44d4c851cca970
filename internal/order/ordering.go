package order

import "github.com/hailam/lazysmp-chess/internal/board"

// MaxPly mirrors the search worker's own ply ceiling. Killer slots are
// indexed by ply, so this package needs the same bound the worker's stack
// uses.
const MaxPly = 64

// Move-ordering score bands.
const (
	scoreTTMove        = 100000
	scoreQueenPromo    = 90000
	scoreUnderPromo    = 70000
	scorePromoCapture  = 80000
	scoreCaptureBase   = 80000
	scoreKiller1       = 75000
	scoreKiller2       = 74999
	scoreCounterMove   = 74000
)

// History holds the move-ordering tables a search worker owns: a
// two-table (one per side) quiet history indexed [from][to], a
// continuation history indexed by (previous piece,square)x(this
// piece,square), and a counter-move table indexed by (piece,to). These
// persist across a whole root search (kept, not cleared, between
// iterations) and are owned exclusively by one worker -- Lazy-SMP workers
// never share history state, only the transposition table.
type History struct {
	Quiet        [2][64][64]int
	Continuation [768][768]int16
	Counter      [12][64]board.Move
}

// NewHistory returns a zeroed history table set for a fresh worker.
func NewHistory() *History { return &History{} }

// Clear resets a worker's history between root searches ("ucinewgame"-style
// resets, not per-iteration aging -- iterative deepening intentionally
// keeps history warm across its own depths).
func (h *History) Clear() {
	*h = History{}
}

// contIndex packs a (piece, square) pair into the continuation history's
// flat 768-wide axis: 12 pieces x 64 squares.
func contIndex(p board.Piece, sq board.Square) int {
	return int(p)*64 + int(sq)
}

// bonusHistory applies the decaying history update formula
// h += bonus - h*|bonus|/MAX, which keeps the table self-limiting without
// an explicit periodic halving pass.
func bonusHistory(h int, bonus int) int {
	const maxHistory = 16384
	h += bonus - h*abs(bonus)/maxHistory
	return h
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// HistoryBonus is the depth-scaled bonus magnitude min(2d^2+16d, cap).
func HistoryBonus(depth int) int {
	const cap = 1600
	b := 2*depth*depth + 16*depth
	if b > cap {
		b = cap
	}
	return b
}

// UpdateQuiet applies bonus to the move that caused the cutoff and an
// equal-magnitude malus to every other quiet move tried at this node, for
// both the plain and continuation history tables, and records the
// counter-move. Killer slots are ply-scoped search state and are updated by
// the caller via OrderContext.UpdateKillers, not here.
func (h *History) UpdateQuiet(pos *board.Position, depth int, best board.Move, tried []board.Move, prev1, prev2 board.Move) {
	bonus := HistoryBonus(depth)
	us := pos.SideToMove

	for _, m := range tried {
		b := -bonus
		if m == best {
			b = bonus
		}
		h.Quiet[us][m.From()][m.To()] = bonusHistory(h.Quiet[us][m.From()][m.To()], b)
		h.updateContinuation(m, b, prev1)
		h.updateContinuation(m, b, prev2)
	}

	if prev1 != board.NoMove {
		h.Counter[prev1.Mover()][prev1.To()] = best
	}
}

func (h *History) updateContinuation(m board.Move, bonus int, prev board.Move) {
	if prev == board.NoMove {
		return
	}
	i := contIndex(prev.Mover(), prev.To())
	j := contIndex(m.Mover(), m.To())
	v := int(h.Continuation[i][j])
	v = bonusHistory(v, bonus)
	if v > 32000 {
		v = 32000
	}
	if v < -32000 {
		v = -32000
	}
	h.Continuation[i][j] = int16(v)
}

// OrderContext is the per-worker ordering state passed into PickMove: the
// killer slots (ply-indexed, cleared at the start of every root search) and
// a pointer to the worker's longer-lived History tables.
type OrderContext struct {
	Killers [MaxPly][2]board.Move
	History *History
}

func NewOrderContext(h *History) *OrderContext {
	return &OrderContext{History: h}
}

func (c *OrderContext) Clear() {
	for i := range c.Killers {
		c.Killers[i][0] = board.NoMove
		c.Killers[i][1] = board.NoMove
	}
}

func (c *OrderContext) killer(ply, slot int) board.Move {
	if ply >= MaxPly {
		return board.NoMove
	}
	return c.Killers[ply][slot]
}

// UpdateKillers records a killer move at ply, shifting the previous first
// killer into the second slot. Only quiet cutoff moves are recorded;
// captures order themselves through SEE.
func (c *OrderContext) UpdateKillers(ply int, m board.Move) {
	if ply >= MaxPly || m == board.NoMove {
		return
	}
	if c.Killers[ply][0] == m {
		return
	}
	c.Killers[ply][1] = c.Killers[ply][0]
	c.Killers[ply][0] = m
}

// score computes the ordering score for one move.
func (c *OrderContext) score(pos *board.Position, m, ttMove board.Move, ply int, prev1, prev2 board.Move) int {
	if m == ttMove {
		return scoreTTMove
	}

	if m.IsPromotion() {
		base := scoreUnderPromo
		if m.Promotion() == board.Queen {
			base = scoreQueenPromo
		}
		if m.IsCapture(pos) {
			base += scorePromoCapture
		}
		return base
	}

	if m.IsCapture(pos) {
		return scoreCaptureBase + See(pos, m)
	}

	if m == c.killer(ply, 0) {
		return scoreKiller1
	}
	if m == c.killer(ply, 1) {
		return scoreKiller2
	}

	us := pos.SideToMove
	score := c.History.Quiet[us][m.From()][m.To()]
	if prev1 != board.NoMove {
		if c.History.Counter[prev1.Mover()][prev1.To()] == m {
			score += scoreCounterMove - score
		}
		score += int(c.History.Continuation[contIndex(prev1.Mover(), prev1.To())][contIndex(m.Mover(), m.To())])
	}
	if prev2 != board.NoMove {
		score += int(c.History.Continuation[contIndex(prev2.Mover(), prev2.To())][contIndex(m.Mover(), m.To())]) / 2
	}
	return score
}

// PickMove implements per-move selection: it scores every move
// from index onward with score and swaps the best-scoring one into index,
// the selection-sort step that incrementally sorts ml in place one call at a
// time. Callers drive a full descending sort by calling this once per index
// from 0 to ml.Len()-1 (as search's main move loop does); a caller that stops
// early (a beta cutoff) never pays to score moves it never tries, which a
// single eager full-list sort would.
func PickMove(pos *board.Position, ml *board.MoveList, c *OrderContext, ttMove board.Move, ply int, index int, prev1, prev2 board.Move) {
	best := index
	bestScore := c.score(pos, ml.Get(index), ttMove, ply, prev1, prev2)
	for j := index + 1; j < ml.Len(); j++ {
		s := c.score(pos, ml.Get(j), ttMove, ply, prev1, prev2)
		if s > bestScore {
			bestScore = s
			best = j
		}
	}
	if best != index {
		ml.Swap(index, best)
	}
}
