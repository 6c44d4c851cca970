package search

import "github.com/hailam/lazysmp-chess/internal/board"

// CorrectionHistory is a position-hash-indexed table nudging the static
// evaluator's output toward what deeper search actually found at that
// position, updated with a gravity formula rather than a flat overwrite
// so outliers decay instead of permanently skewing the table.
type CorrectionHistory struct {
	table [65536]int16
}

// NewCorrectionHistory returns a zeroed correction table for a fresh
// worker.
func NewCorrectionHistory() *CorrectionHistory { return &CorrectionHistory{} }

// Get returns the correction to add to a position's static evaluation.
func (ch *CorrectionHistory) Get(pos *board.Position) int {
	idx := pos.Hash & 0xFFFF
	return int(ch.table[idx])
}

// Update records how far off the static evaluation was from what the
// search actually returned at depth, via a depth-scaled gravity update:
// new = old + (bonus-old)/16, where bonus is the clamped, depth-scaled
// error.
func (ch *CorrectionHistory) Update(pos *board.Position, searchScore, staticEval, depth int) {
	if depth < 1 {
		return
	}

	diff := searchScore - staticEval
	bonus := diff * depth / 8
	if bonus > 256 {
		bonus = 256
	} else if bonus < -256 {
		bonus = -256
	}

	idx := pos.Hash & 0xFFFF
	old := int(ch.table[idx])
	newVal := old + (bonus-old)/16
	if newVal > 16000 {
		newVal = 16000
	} else if newVal < -16000 {
		newVal = -16000
	}
	ch.table[idx] = int16(newVal)
}

// Clear resets every correction to zero ("ucinewgame"-style resets).
func (ch *CorrectionHistory) Clear() {
	for i := range ch.table {
		ch.table[i] = 0
	}
}
