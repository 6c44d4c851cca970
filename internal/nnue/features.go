package nnue

import "github.com/hailam/lazysmp-chess/internal/board"

// kingBucket[sq] maps a king's own square to one of the 10 input buckets,
// grouping squares into five rank bands (ranks {0,1},{2,3},{4,5},{6},{7})
// crossed with a queenside/kingside file split. The partition is fixed
// and symmetric so both perspectives share one table.
var kingBucket [64]int

func init() {
	for sq := 0; sq < 64; sq++ {
		rank := sq / 8
		file := sq % 8
		var rankGroup int
		switch {
		case rank <= 1:
			rankGroup = 0
		case rank <= 3:
			rankGroup = 1
		case rank <= 5:
			rankGroup = 2
		case rank == 6:
			rankGroup = 3
		default:
			rankGroup = 4
		}
		fileGroup := 0
		if file >= 4 {
			fileGroup = 1
		}
		kingBucket[sq] = rankGroup*2 + fileGroup
	}
}

// KingBucket selects the input bucket from the own king's square,
// mirrored for black so the same bucket table serves both perspectives.
func KingBucket(kingSq board.Square, side board.Color) int {
	sq := kingSq
	if side == board.Black {
		sq = board.Square(int(sq) ^ 56)
	}
	return kingBucket[sq]
}

// featureIndex computes the perspective-symmetric feature index:
// white_feature = color(p)*384 + type(p)*64 + s
// black_feature = (1-color(p))*384 + type(p)*64 + (s^56)
// pt must be 0..5 (Pawn..King); kings are real features here, 768 =
// 2 colors * 6 piece types * 64 squares.
func featureIndex(color board.Color, pt board.PieceType, sq board.Square, perspective board.Color) int {
	relColor := int(color)
	relSq := int(sq)
	if perspective == board.Black {
		relColor = 1 - relColor
		relSq ^= 56
	}
	return relColor*384 + int(pt)*64 + relSq
}

// activeFeatures appends every occupied square's feature index, from the
// given perspective, to out.
func activeFeatures(pos *board.Position, perspective board.Color, out []int) []int {
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				out = append(out, featureIndex(c, pt, sq, perspective))
			}
		}
	}
	return out
}
