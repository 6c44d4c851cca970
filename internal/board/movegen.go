package board

// The generator follows a staged contract: GenerateCaptures and
// GenerateQuiets are used by ordinary search nodes (captures first, for
// move ordering and quiescence; quiets only once captures are exhausted),
// while GenerateEvasions replaces both whenever the side to move is in
// check, since the set of pseudo-legal replies to check is structurally
// different (king moves, capture-the-checker, block-the-checker) and far
// smaller than the full move set.
//
// All three entry points return legal moves only: each runs its candidates
// through filterLegal, which plays and undoes every move once to check that
// the mover's king is not left attacked. GeneratePseudoLegalMoves and the
// unexported generators do not filter; for their output, legality is
// settled by MakeMove's own king-attacked check after the move is played.

// GenerateLegalMoves generates all legal moves for the position. This is a
// convenience wrapper over the staged generators, for callers (tests,
// perft) that don't need staged move ordering themselves.
func (p *Position) GenerateLegalMoves() *MoveList {
	pseudo := p.GeneratePseudoLegalMoves()
	return p.filterLegal(pseudo)
}

// GeneratePseudoLegalMoves generates every pseudo-legal move, captures and
// quiets together (or evasions, if in check).
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	if p.InCheck() {
		p.generateEvasions(ml)
		return ml
	}
	p.generateCaptures(ml)
	p.generateQuiets(ml)
	return ml
}

// GenerateCaptures generates captures, en-passant, promotion captures,
// and queen-promotion pushes -- a queening push is never safe to defer to
// the quiet stage.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	if p.InCheck() {
		p.generateEvasions(ml)
		return p.filterLegal(ml)
	}
	p.generateCaptures(ml)
	return p.filterLegal(ml)
}

// GenerateQuiets generates every legal non-capture: pawn pushes,
// piece moves, castles, and the under-promotion pushes (R, B, N) the
// capture stage leaves behind.
func (p *Position) GenerateQuiets() *MoveList {
	ml := NewMoveList()
	if p.InCheck() {
		return ml
	}
	p.generateQuiets(ml)
	return p.filterLegal(ml)
}

// GenerateEvasions generates check evasions directly, for callers that
// already know the side to move is in check.
func (p *Position) GenerateEvasions() *MoveList {
	ml := NewMoveList()
	p.generateEvasions(ml)
	return p.filterLegal(ml)
}

func (p *Position) generateQuiets(ml *MoveList) {
	us := p.SideToMove
	occupied := p.AllOccupied
	empty := ^occupied

	p.generateQuietPawnMoves(ml, us, empty)

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		attacks := KnightAttacks(from) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Knight, us)))
		}
	}

	bishops := p.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Bishop, us)))
		}
	}

	rooks := p.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Rook, us)))
		}
	}

	queens := p.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, occupied) & empty
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Queen, us)))
		}
	}

	from := p.KingSquare[us]
	attacks := KingAttacks(from) & empty
	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMove(from, to, NewPiece(King, us)))
	}

	p.generateCastlingMoves(ml, us)
}

func (p *Position) generateQuietPawnMoves(ml *MoveList, us Color, empty Bitboard) {
	pawns := p.Pieces[us][Pawn]
	var push1, push2 Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		promotionRank = Rank1
		pushDir = -8
	}

	nonPromo := push1 &^ promotionRank
	mover := NewPiece(Pawn, us)
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		from := Square(int(to) - pushDir)
		ml.Add(NewMove(from, to, mover))
	}

	for push2 != 0 {
		to := push2.PopLSB()
		from := Square(int(to) - 2*pushDir)
		ml.Add(NewMove(from, to, mover))
	}

	// Under-promotion pushes; the queening push lives in the capture stage.
	promo := push1 & promotionRank
	for promo != 0 {
		to := promo.PopLSB()
		from := Square(int(to) - pushDir)
		ml.Add(NewPromotion(from, to, Rook, mover))
		ml.Add(NewPromotion(from, to, Bishop, mover))
		ml.Add(NewPromotion(from, to, Knight, mover))
	}
}

func addPromotions(ml *MoveList, from, to Square, mover Piece) {
	ml.Add(NewPromotion(from, to, Queen, mover))
	ml.Add(NewPromotion(from, to, Rook, mover))
	ml.Add(NewPromotion(from, to, Bishop, mover))
	ml.Add(NewPromotion(from, to, Knight, mover))
}

func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	them := us.Other()
	king := NewPiece(King, us)

	if us == White {
		if p.CastlingRights&WhiteKingSideCastle != 0 &&
			p.AllOccupied&((1<<F1)|(1<<G1)) == 0 &&
			!p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(F1, them) && !p.IsSquareAttacked(G1, them) {
			ml.Add(NewCastling(E1, G1, king))
		}
		if p.CastlingRights&WhiteQueenSideCastle != 0 &&
			p.AllOccupied&((1<<B1)|(1<<C1)|(1<<D1)) == 0 &&
			!p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(D1, them) && !p.IsSquareAttacked(C1, them) {
			ml.Add(NewCastling(E1, C1, king))
		}
	} else {
		if p.CastlingRights&BlackKingSideCastle != 0 &&
			p.AllOccupied&((1<<F8)|(1<<G8)) == 0 &&
			!p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(F8, them) && !p.IsSquareAttacked(G8, them) {
			ml.Add(NewCastling(E8, G8, king))
		}
		if p.CastlingRights&BlackQueenSideCastle != 0 &&
			p.AllOccupied&((1<<B8)|(1<<C8)|(1<<D8)) == 0 &&
			!p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(D8, them) && !p.IsSquareAttacked(C8, them) {
			ml.Add(NewCastling(E8, C8, king))
		}
	}
}

// castleLegal is the same emptiness/not-attacked
// test generateCastlingMoves uses, exposed standalone so MakeMove can
// re-verify a castling move that did not necessarily come from this
// generator (a transposition-table hash move, for instance).
func (p *Position) castleLegal(from, to Square) bool {
	us := p.PieceAt(from).Color()
	them := us.Other()

	if us == White && from == E1 {
		if to == G1 {
			return p.CastlingRights&WhiteKingSideCastle != 0 &&
				p.AllOccupied&((1<<F1)|(1<<G1)) == 0 &&
				!p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(F1, them) && !p.IsSquareAttacked(G1, them)
		}
		if to == C1 {
			return p.CastlingRights&WhiteQueenSideCastle != 0 &&
				p.AllOccupied&((1<<B1)|(1<<C1)|(1<<D1)) == 0 &&
				!p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(D1, them) && !p.IsSquareAttacked(C1, them)
		}
	}
	if us == Black && from == E8 {
		if to == G8 {
			return p.CastlingRights&BlackKingSideCastle != 0 &&
				p.AllOccupied&((1<<F8)|(1<<G8)) == 0 &&
				!p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(F8, them) && !p.IsSquareAttacked(G8, them)
		}
		if to == C8 {
			return p.CastlingRights&BlackQueenSideCastle != 0 &&
				p.AllOccupied&((1<<B8)|(1<<C8)|(1<<D8)) == 0 &&
				!p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(D8, them) && !p.IsSquareAttacked(C8, them)
		}
	}
	return false
}

func (p *Position) generateCaptures(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	enemies := p.Occupied[them]
	occupied := p.AllOccupied

	p.generatePawnCaptures(ml, us, enemies, occupied)

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		attacks := KnightAttacks(from) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Knight, us)))
		}
	}

	bishops := p.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Bishop, us)))
		}
	}

	rooks := p.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Rook, us)))
		}
	}

	queens := p.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, occupied) & enemies
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Queen, us)))
		}
	}

	from := p.KingSquare[us]
	attacks := KingAttacks(from) & enemies
	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMove(from, to, NewPiece(King, us)))
	}
}

func (p *Position) generatePawnCaptures(ml *MoveList, us Color, enemies, occupied Bitboard) {
	pawns := p.Pieces[us][Pawn]
	mover := NewPiece(Pawn, us)
	var attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	nonPromoL := attackL &^ promotionRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		ml.Add(NewMove(from, to, mover))
	}
	nonPromoR := attackR &^ promotionRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		ml.Add(NewMove(from, to, mover))
	}

	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		addPromotions(ml, from, to, mover)
	}
	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		addPromotions(ml, from, to, mover)
	}

	// Queen-promotion pushes only; under-promotion pushes are quiets.
	empty := ^occupied
	var push1 Bitboard
	if us == White {
		push1 = pawns.North() & empty & Rank8
	} else {
		push1 = pawns.South() & empty & Rank1
	}
	for push1 != 0 {
		to := push1.PopLSB()
		from := Square(int(to) - pushDir)
		ml.Add(NewPromotion(from, to, Queen, mover))
	}

	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for epAttackers != 0 {
			from := epAttackers.PopLSB()
			ml.Add(NewEnPassant(from, p.EnPassant, mover))
		}
	}
}

// generateEvasions emits legal-shaped replies to
// check. A double check only ever admits king moves (capturing or
// blocking one checker still leaves the king attacked by the other), so
// the checker count short-circuits straight to king moves in that case.
func (p *Position) generateEvasions(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]

	kingMover := NewPiece(King, us)
	kingMoves := KingAttacks(ksq) &^ p.Occupied[us]
	occWithoutKing := p.AllOccupied &^ SquareBB(ksq)
	for kingMoves != 0 {
		to := kingMoves.PopLSB()
		if p.AttackersByColor(to, them, occWithoutKing) == 0 {
			ml.Add(NewMove(ksq, to, kingMover))
		}
	}

	if p.Checkers.PopCount() > 1 {
		return
	}

	checkerSq := p.Checkers.LSB()
	target := Between(ksq, checkerSq) | SquareBB(checkerSq)

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		attacks := KnightAttacks(from) & target
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Knight, us)))
		}
	}

	bishops := p.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, p.AllOccupied) & target
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Bishop, us)))
		}
	}

	rooks := p.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, p.AllOccupied) & target
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Rook, us)))
		}
	}

	queens := p.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, p.AllOccupied) & target
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, NewPiece(Queen, us)))
		}
	}

	pawns := p.Pieces[us][Pawn]
	mover := NewPiece(Pawn, us)
	empty := ^p.AllOccupied
	var push1, push2 Bitboard
	var promotionRank Bitboard
	var pushDir int
	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		promotionRank = Rank1
		pushDir = -8
	}
	push1 &= target
	push2 &= target

	nonPromo := push1 &^ promotionRank
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		from := Square(int(to) - pushDir)
		ml.Add(NewMove(from, to, mover))
	}
	for push2 != 0 {
		to := push2.PopLSB()
		from := Square(int(to) - 2*pushDir)
		ml.Add(NewMove(from, to, mover))
	}
	promo := push1 & promotionRank
	for promo != 0 {
		to := promo.PopLSB()
		from := Square(int(to) - pushDir)
		addPromotions(ml, from, to, mover)
	}

	enemies := p.Occupied[them]
	var attackL, attackR Bitboard
	if us == White {
		attackL = pawns.NorthWest() & enemies & target
		attackR = pawns.NorthEast() & enemies & target
	} else {
		attackL = pawns.SouthWest() & enemies & target
		attackR = pawns.SouthEast() & enemies & target
	}
	for attackL != 0 {
		to := attackL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		if to.RelativeRank(us) == 7 {
			addPromotions(ml, from, to, mover)
		} else {
			ml.Add(NewMove(from, to, mover))
		}
	}
	for attackR != 0 {
		to := attackR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		if to.RelativeRank(us) == 7 {
			addPromotions(ml, from, to, mover)
		} else {
			ml.Add(NewMove(from, to, mover))
		}
	}

	// En passant can evade check only by capturing the checking pawn
	// itself, which target doesn't cover (it's a step to the side of the
	// checker, not onto its square).
	if p.EnPassant != NoSquare {
		var capturedPawnSq Square
		if us == White {
			capturedPawnSq = p.EnPassant - 8
		} else {
			capturedPawnSq = p.EnPassant + 8
		}
		if SquareBB(capturedPawnSq) == p.Checkers {
			epBB := SquareBB(p.EnPassant)
			var epAttackers Bitboard
			if us == White {
				epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
			} else {
				epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
			}
			for epAttackers != 0 {
				from := epAttackers.PopLSB()
				ml.Add(NewEnPassant(from, p.EnPassant, mover))
			}
		}
	}
}

// filterLegal plays every candidate move with MakeMove and keeps the ones
// that turn out legal, immediately undoing each.
func (p *Position) filterLegal(ml *MoveList) *MoveList {
	result := NewMoveList()
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if p.MakeMove(m) {
			p.UnmakeMove()
			result.Add(m)
		}
	}
	return result
}

// KingAttacked reports whether the given side's king is currently
// attacked in the position as it stands, no make/undo involved.
func (p *Position) KingAttacked(c Color) bool {
	return p.IsSquareAttacked(p.KingSquare[c], c.Other())
}

// IsLegal reports whether a pseudo-legal move is legal, via the same
// make/check/undo path MakeMove itself uses. Kept for callers (SEE, move
// ordering) that want a yes/no answer without applying the move to their
// own copy of the position.
func (p *Position) IsLegal(m Move) bool {
	if !p.MakeMove(m) {
		return false
	}
	p.UnmakeMove()
	return true
}
