package board

import "fmt"

// Move packs a chess move into a 32-bit integer (LSB to MSB):
//
//	to:6 | from:6 | promo-kind:2 | flag:2 | mover-piece:4 | unused:12
//
// promo-kind is {0=N,1=B,2=R,3=Q}, meaningful only when flag==FlagPromotion.
// mover-piece is the moving Piece (0-11) recorded at generation time, read
// back through Mover() by MakeMove, the move-ordering tables and the NNUE
// update. SEE and the transposition table's 20-bit move field do not use
// it; they look the mover up on the board.
type Move uint32

const (
	moveToShift    = 0
	moveFromShift  = 6
	movePromoShift = 12
	moveFlagShift  = 14
	moveMoverShift = 16
	moveSquareMask = 0x3F
	movePromoMask  = 0x3
	moveFlagMask   = 0x3
	moveMoverMask  = 0xF
)

// Move flags.
const (
	FlagNormal    uint32 = 0
	FlagPromotion uint32 = 1
	FlagEnPassant uint32 = 2
	FlagCastling  uint32 = 3
)

// NoMove is the null/invalid move.
const NoMove Move = 0

// PackMove builds a Move from its raw parts. It exists for packages (the
// transposition table, the search worker) that reconstruct a move from a
// compacted on-disk or in-table encoding that dropped the mover-piece
// field, and recover it separately by looking at the position the move is
// about to be played against.
func PackMove(from, to Square, promo PieceType, flag uint32, mover Piece) Move {
	return packMove(from, to, promo, flag, mover)
}

func packMove(from, to Square, promo PieceType, flag uint32, mover Piece) Move {
	var promoIdx uint32
	if flag == FlagPromotion {
		promoIdx = uint32(promo - Knight)
	}
	return Move(uint32(to)<<moveToShift |
		uint32(from)<<moveFromShift |
		promoIdx<<movePromoShift |
		flag<<moveFlagShift |
		uint32(mover)<<moveMoverShift)
}

// NewMove builds a normal (non-special) move.
func NewMove(from, to Square, mover Piece) Move {
	return packMove(from, to, 0, FlagNormal, mover)
}

// NewPromotion builds a pawn-promotion move.
func NewPromotion(from, to Square, promo PieceType, mover Piece) Move {
	return packMove(from, to, promo, FlagPromotion, mover)
}

// NewEnPassant builds an en-passant capture move.
func NewEnPassant(from, to Square, mover Piece) Move {
	return packMove(from, to, 0, FlagEnPassant, mover)
}

// NewCastling builds a castling move, encoded as the king's own movement.
func NewCastling(from, to Square, mover Piece) Move {
	return packMove(from, to, 0, FlagCastling, mover)
}

// From returns the origin square.
func (m Move) From() Square { return Square((uint32(m) >> moveFromShift) & moveSquareMask) }

// To returns the destination square.
func (m Move) To() Square { return Square((uint32(m) >> moveToShift) & moveSquareMask) }

// Flag returns the move's flag.
func (m Move) Flag() uint32 { return (uint32(m) >> moveFlagShift) & moveFlagMask }

// Mover returns the piece that made the move, as recorded at generation time.
func (m Move) Mover() Piece { return Piece((uint32(m) >> moveMoverShift) & moveMoverMask) }

// Promotion returns the promotion piece type; only meaningful if IsPromotion().
func (m Move) Promotion() PieceType {
	return PieceType((uint32(m)>>movePromoShift)&movePromoMask) + Knight
}

func (m Move) IsPromotion() bool { return m.Flag() == FlagPromotion }
func (m Move) IsCastling() bool  { return m.Flag() == FlagCastling }
func (m Move) IsEnPassant() bool { return m.Flag() == FlagEnPassant }

// IsCapture reports whether this move removes an enemy piece. The encoding
// alone can't distinguish a quiet move from a capture without checking the
// destination square against the position it is about to be played in.
func (m Move) IsCapture(pos *Position) bool {
	if m.IsEnPassant() {
		return true
	}
	return !pos.IsEmpty(m.To())
}

// IsQuiet is the complement of IsCapture || IsPromotion.
func (m Move) IsQuiet(pos *Position) bool {
	return !m.IsCapture(pos) && !m.IsPromotion()
}

func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += string("nbrq"[m.Promotion()-Knight])
	}
	return s
}

// ParseMove decodes a UCI move token such as "e2e4" or "e7e8q" against the
// position it is about to be played in, recovering the flag/mover fields
// the bare text doesn't carry.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}
	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo, piece), nil
	}

	pt := piece.Type()
	if pt == King && abs(int(to)-int(from)) == 2 {
		return NewCastling(from, to, piece), nil
	}
	if pt == Pawn && to == pos.EnPassant {
		return NewEnPassant(from, to, piece), nil
	}
	return NewMove(from, to, piece), nil
}

// MoveList is a fixed-capacity move buffer: the move-generator contract is
// to append into a caller-provided fixed-capacity buffer, not to grow a
// slice.
type MoveList struct {
	moves [256]Move
	count int
}

func NewMoveList() *MoveList { return &MoveList{} }

func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

func (ml *MoveList) Len() int          { return ml.count }
func (ml *MoveList) Get(i int) Move    { return ml.moves[i] }
func (ml *MoveList) Set(i int, m Move) { ml.moves[i] = m }
func (ml *MoveList) Swap(i, j int)     { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }
func (ml *MoveList) Clear()            { ml.count = 0 }

func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

func (ml *MoveList) Slice() []Move { return ml.moves[:ml.count] }

// cookie is the undo record pushed onto a position's cookie stack on
// every make, and popped on every undo. It carries exactly what's needed
// to reconstruct the position's prior state without rehashing from
// scratch.
type cookie struct {
	move           Move
	captured       Piece
	castlingRights CastlingRights
	enPassant      Square
	halfMoveClock  int
	hash           uint64
	kingSquare     [2]Square
	valid          bool // set true on every push; a rejected move's cookie is popped before MakeMove returns
}
