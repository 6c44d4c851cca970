// Package order implements move ordering and static exchange evaluation:
// the TT/killer/history/MVV-LVA scoring the search worker uses to sort
// each node's move list, and the SEE routine both the ordering score and
// the search's loud-move pruning lean on.
package order

import "github.com/hailam/lazysmp-chess/internal/board"

// SEEValue is the piece-value table SEE and ordering use. The king gets a
// large but finite value so a king "capture" in the swap sequence --
// which can only happen if the position is already illegal -- doesn't
// overflow the negamax.
var SEEValue = [7]int{100, 320, 330, 500, 900, 10000, 0}

// See is the standard static exchange evaluation at the move's
// destination square. It repeatedly swaps in the least valuable
// attacker for the side to move, negamaxes the resulting per-ply gain
// sequence, and returns the net material result for the side making m, from
// that side's own perspective.
//
// The occupancy bitboard is updated as attackers are removed, so sliders
// behind an already-removed attacker on the same line (x-ray attacks) are
// picked up naturally by recomputing slider attacks against the shrinking
// occupancy every iteration -- no separate x-ray bookkeeping is needed.
func See(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()
	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var gain0 int
	if m.IsEnPassant() {
		gain0 = SEEValue[board.Pawn]
	} else {
		victim := pos.PieceAt(to)
		if victim == board.NoPiece {
			return 0
		}
		gain0 = SEEValue[victim.Type()]
	}
	if m.IsPromotion() {
		gain0 += SEEValue[m.Promotion()] - SEEValue[board.Pawn]
	}

	return seeSwap(pos, to, from, attacker, gain0)
}

// SeePrune partitions ml in place, keeping only the moves whose SEE is
// non-negative and preserving relative order among the survivors (a
// stable partition, not a sort).
func SeePrune(pos *board.Position, ml *board.MoveList) {
	write := 0
	for read := 0; read < ml.Len(); read++ {
		m := ml.Get(read)
		if See(pos, m) >= 0 {
			ml.Set(write, m)
			write++
		}
	}
	for i := write; i < ml.Len(); i++ {
		ml.Set(i, board.NoMove)
	}
	truncate(ml, write)
}

// truncate shrinks a MoveList to n entries. MoveList has no public Truncate,
// so this rebuilds it in place via Clear and repeated Add -- cheap since n is at
// most a few dozen moves.
func truncate(ml *board.MoveList, n int) {
	kept := make([]board.Move, n)
	copy(kept, ml.Slice()[:n])
	ml.Clear()
	for _, m := range kept {
		ml.Add(m)
	}
}

func seeSwap(pos *board.Position, target, excludeFrom board.Square, firstAttacker board.Piece, initialGain int) int {
	var gain [32]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied &^ board.SquareBB(excludeFrom)
	attackerValue := SEEValue[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++
		if d >= len(gain) {
			break
		}
		gain[d] = attackerValue - gain[d-1]
		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		sq, piece := leastValuableAttacker(pos, target, side, occupied)
		if sq == board.NoSquare {
			break
		}
		occupied &^= board.SquareBB(sq)
		attackerValue = SEEValue[piece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}

// leastValuableAttacker finds the cheapest piece of side attacking target
// given occupied, checking piece types in ascending value order so pawns
// are tried before knights/bishops before rooks before the queen before the
// king -- exactly the order the swap algorithm requires.
func leastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.Piece) {
	pawns := pos.Pieces[side][board.Pawn] & occupied
	if attackers := pawns & board.PawnAttacks(target, side.Other()); attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Pawn, side)
	}

	knights := pos.Pieces[side][board.Knight] & occupied
	if attackers := knights & board.KnightAttacks(target); attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Knight, side)
	}

	bishopAttacks := board.BishopAttacks(target, occupied)
	bishops := pos.Pieces[side][board.Bishop] & occupied
	if attackers := bishops & bishopAttacks; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Bishop, side)
	}

	rookAttacks := board.RookAttacks(target, occupied)
	rooks := pos.Pieces[side][board.Rook] & occupied
	if attackers := rooks & rookAttacks; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Rook, side)
	}

	queens := pos.Pieces[side][board.Queen] & occupied
	if attackers := queens & (bishopAttacks | rookAttacks); attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Queen, side)
	}

	king := pos.Pieces[side][board.King] & occupied
	if attackers := king & board.KingAttacks(target); attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.King, side)
	}

	return board.NoSquare, board.NoPiece
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
