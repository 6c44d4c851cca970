// Package tt implements the shared, lock-free transposition table used by
// every search worker in the pool. Each of the three slots in a bucket is
// two 64-bit words (16 bytes): a payload word carrying the packed move,
// score, static eval, depth, bound and PV flag, and a tag word that is the
// position's Zobrist key XORed with the payload plus a 5-bit generation
// stamp. A write publishes the payload first and the tag last; a reader
// that races a writer either sees the old, internally-consistent pair or
// the new one -- a half-written entry fails the tag/payload checksum
// comparison and is treated as a miss rather than read as garbage. This
// mirrors the XOR-checksum trick used by Stockfish's table and the
// atomic-pointer publish idiom shown in the reference lock-free search
// table, adapted here to a fixed-size packed entry instead of a heap
// pointer so each slot stays at exactly 16 bytes.
package tt

import (
	"sync/atomic"

	"github.com/hailam/lazysmp-chess/internal/board"
)

// Bound records which side of the search window a stored score is exact
// or only a bound for.
type Bound uint8

const (
	BoundNone Bound = iota
	BoundExact
	BoundLower
	BoundUpper
)

// MateScore and MaxPly define the mate-distance encoding window. MaxPly
// matches the search worker's own node-ply ceiling; a score adjustment
// past that distance from mate is assumed to not occur.
const (
	MateScore = 32000
	MaxPly    = 64
)

const (
	moveShift  = 0
	moveBits   = 20
	moveMask   = (1 << moveBits) - 1
	scoreShift = moveShift + moveBits
	scoreMask  = 0xFFFF
	evalShift  = scoreShift + 16
	evalMask   = 0xFFFF
	depthShift = evalShift + 16
	depthMask  = 0xFF
	boundShift = depthShift + 8
	boundMask  = 0x3
	pvShift    = boundShift + 2

	genShift      = 59
	genMask       = 0x1F
	checksumShift = 0
	checksumBits  = 59
	checksumMask  = (uint64(1) << checksumBits) - 1
)

// packMove compacts a move into the 16 bits the entry budget actually
// uses of its 20-bit field: to, from, promotion kind and flag. The
// mover-piece nibble is dropped -- a TT hit is always probed against a
// concrete position, which can recover the mover with one PieceAt call.
func packMove(m board.Move) uint64 {
	if m == board.NoMove {
		return 0
	}
	to := uint64(m.To())
	from := uint64(m.From())
	var promo uint64
	if m.IsPromotion() {
		promo = uint64(m.Promotion()) - uint64(board.Knight)
	}
	return to | from<<6 | promo<<12 | uint64(m.Flag())<<14
}

func unpackMove(bits uint64, pos *board.Position) board.Move {
	if bits == 0 {
		return board.NoMove
	}
	to := board.Square(bits & 0x3F)
	from := board.Square((bits >> 6) & 0x3F)
	promo := board.PieceType((bits>>12)&0x3) + board.Knight
	flag := uint32((bits >> 14) & 0x3)
	mover := pos.PieceAt(from)
	return board.PackMove(from, to, promo, flag, mover)
}

// packDataBits packs an already-computed move-bits field alongside score,
// static eval, depth, bound and the PV flag into one entry word. Store
// takes the move field pre-packed (rather than a board.Move) so its
// move-preservation path can carry the previous entry's raw move bits
// forward without needing a *board.Position to reconstruct a board.Move
// first.
func packDataBits(moveBits uint64, score, staticEval, depth int, bound Bound, pv bool) uint64 {
	var pvBit uint64
	if pv {
		pvBit = 1
	}
	return (moveBits & moveMask) << moveShift |
		(uint64(uint16(score))&scoreMask)<<scoreShift |
		(uint64(uint16(staticEval))&evalMask)<<evalShift |
		(uint64(depth)&depthMask)<<depthShift |
		(uint64(bound)&boundMask)<<boundShift |
		pvBit<<pvShift
}

func unpackData(data uint64) (moveBits uint64, score, staticEval, depth int, bound Bound, pv bool) {
	moveBits = (data >> moveShift) & moveMask
	score = int(int16((data >> scoreShift) & scoreMask))
	staticEval = int(int16((data >> evalShift) & evalMask))
	depth = int((data >> depthShift) & depthMask)
	bound = Bound((data >> boundShift) & boundMask)
	pv = (data>>pvShift)&1 != 0
	return
}

// slot is one 16-byte cell in a bucket. key and data are loaded/stored
// independently with full sequential consistency (Go's atomic package
// doesn't expose bare acquire/release, but seq-cst is a strict superset
// of what the publish protocol needs).
type slot struct {
	data atomic.Uint64
	key  atomic.Uint64
}

// bucketWidth is the set-associativity: a hash maps to one bucket of
// bucketWidth independent slots, scanned linearly on probe.
const bucketWidth = 3

type bucket struct {
	slots [bucketWidth]slot
}

// Table is the shared, concurrent transposition table.
type Table struct {
	buckets []bucket
	mask    uint64
	gen     atomic.Uint32
}

// New allocates a table sized to sizeMB megabytes, rounded down to a
// power-of-two number of buckets so indexing is a mask instead of a mod.
func New(sizeMB int) *Table {
	t := &Table{}
	t.Resize(sizeMB)
	return t
}

func bucketCountForMB(sizeMB int) uint64 {
	if sizeMB < 1 {
		sizeMB = 1
	}
	bucketSize := uint64(bucketWidth * 16)
	n := (uint64(sizeMB) * 1024 * 1024) / bucketSize
	if n == 0 {
		n = 1
	}
	return roundDownToPowerOf2(n)
}

func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Resize reallocates the table, discarding all entries.
func (t *Table) Resize(sizeMB int) {
	n := bucketCountForMB(sizeMB)
	t.buckets = make([]bucket, n)
	t.mask = n - 1
	t.gen.Store(0)
}

// Clear zeroes every entry without reallocating.
func (t *Table) Clear() {
	for i := range t.buckets {
		for j := range t.buckets[i].slots {
			t.buckets[i].slots[j].data.Store(0)
			t.buckets[i].slots[j].key.Store(0)
		}
	}
	t.gen.Store(0)
}

// NewSearch advances the generation counter, used both to prefer entries
// from the current search over stale ones on replacement and to compute
// HashFull.
func (t *Table) NewSearch() {
	t.gen.Add(1)
}

func tagFor(hash uint64, gen uint32) uint64 {
	return (hash & checksumMask) | (uint64(gen&genMask) << genShift)
}

// Entry is the decoded result of a successful Probe.
type Entry struct {
	Move       board.Move
	Score      int
	StaticEval int
	Depth      int
	Bound      Bound
	PV         bool
}

// Probe looks up hash and, on a hit, reconstructs the stored move against
// pos (to recover the mover-piece field the compact encoding drops) and
// un-adjusts the stored score for ply, per AdjustScoreFromTT.
func (t *Table) Probe(pos *board.Position, hash uint64, ply int) (Entry, bool) {
	b := &t.buckets[hash&t.mask]
	want := hash & checksumMask

	for i := range b.slots {
		s := &b.slots[i]
		data := s.data.Load()
		key := s.key.Load()
		tag := key ^ data
		if tag&checksumMask != want {
			continue
		}
		moveBits, score, staticEval, depth, bound, pv := unpackData(data)
		return Entry{
			Move:       unpackMove(moveBits, pos),
			Score:      AdjustScoreFromTT(score, ply),
			StaticEval: staticEval,
			Depth:      depth,
			Bound:      bound,
			PV:         pv,
		}, true
	}
	return Entry{}, false
}

// Store writes an entry into hash's bucket. A tag match against the
// current slot is always preferred as the write target over evicting some
// other entry; absent a tag match, the victim is the slot with the lowest
// value, where value favors entries from the current generation and
// greater depth -- an old, shallow entry is the first thing evicted; a
// deep entry from this same search is the last.
//
// The overwrite itself is conditional: always replace on an EXACT
// bound, on a tag mismatch (a different key or an empty slot), or when the
// matched entry is from a different generation; otherwise (same key, same
// generation, non-EXACT bound) only replace if depth+(pv?6:4) exceeds the
// existing entry's depth, and -- when that happens -- keep the existing
// move if the caller passed none (m == NoMove), rather than clobbering a
// good move with a null one.
func (t *Table) Store(hash uint64, ply int, m board.Move, score, staticEval, depth int, bound Bound, pv bool) {
	b := &t.buckets[hash&t.mask]
	gen := t.gen.Load()
	want := hash & checksumMask

	worst := 0
	worstValue := int(^uint(0) >> 1)
	tagMatched := false
	var oldData, oldKey uint64
	for i := range b.slots {
		s := &b.slots[i]
		data := s.data.Load()
		key := s.key.Load()
		tag := key ^ data

		if tag&checksumMask == want {
			worst = i
			tagMatched = true
			oldData, oldKey = data, key
			break
		}

		entryGen := uint32(tag>>genShift) & genMask
		_, _, _, entryDepth, _, _ := unpackData(data)
		value := entryDepth
		if entryGen != gen {
			value -= 64
		}
		if value < worstValue {
			worstValue = value
			worst = i
		}
	}

	moveBits := packMove(m)
	if tagMatched {
		oldTag := oldKey ^ oldData
		oldGen := uint32(oldTag>>genShift) & genMask
		oldMoveBits, _, _, oldDepth, _, _ := unpackData(oldData)

		ageDistance := genDistance(gen, oldGen)
		if bound != BoundExact && ageDistance == 0 {
			pvBonus := 4
			if pv {
				pvBonus = 6
			}
			if depth+pvBonus <= oldDepth {
				return
			}
		}
		if m == board.NoMove {
			moveBits = oldMoveBits
		}
	}

	adjScore := AdjustScoreToTT(score, ply)
	data := packDataBits(moveBits, adjScore, staticEval, depth, bound, pv)
	tag := tagFor(hash, gen)
	storedKey := tag ^ data

	s := &b.slots[worst]
	s.data.Store(data)
	s.key.Store(storedKey)
}

// genDistance returns the forward distance from old to current in the 5-bit
// generation counter's modulo-32 space, used by Store's tag-match path to
// tell "same search" (0) from "stale" (nonzero). The victim search above
// compares generations directly.
func genDistance(current, old uint32) uint32 {
	return (current - old) & genMask
}

// HashFull samples the first 1000 buckets and reports, in permille, how
// many slots in the sample belong to the current search generation.
func (t *Table) HashFull() int {
	sample := 1000
	if uint64(sample) > uint64(len(t.buckets)) {
		sample = len(t.buckets)
	}
	if sample == 0 {
		return 0
	}

	gen := t.gen.Load()
	used := 0
	total := 0
	for i := 0; i < sample; i++ {
		for j := range t.buckets[i].slots {
			total++
			s := &t.buckets[i].slots[j]
			data := s.data.Load()
			key := s.key.Load()
			tag := key ^ data
			if data == 0 && key == 0 {
				continue
			}
			if uint32(tag>>genShift)&genMask == gen {
				used++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return (used * 1000) / total
}

// AdjustScoreToTT converts a root-relative mate score into one relative to
// the stored node, so the same mate found at different plies from root
// still hashes to a reusable entry.
func AdjustScoreToTT(score, ply int) int {
	if score >= MateScore-MaxPly {
		return score + ply
	}
	if score <= -MateScore+MaxPly {
		return score - ply
	}
	return score
}

// AdjustScoreFromTT reverses AdjustScoreToTT when a stored mate score is
// read back out at a different ply than it was stored at.
func AdjustScoreFromTT(score, ply int) int {
	if score >= MateScore-MaxPly {
		return score - ply
	}
	if score <= -MateScore+MaxPly {
		return score + ply
	}
	return score
}
