package uci

import (
	"fmt"
	"time"

	"github.com/hailam/lazysmp-chess/internal/board"
	"github.com/hailam/lazysmp-chess/internal/search"
)

// benchSuite is a small fixed set of FENs exercising the opening,
// middlegame tactics, and endgame alike.
var benchSuite = []string{
	board.StartFEN,
	"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"4rrk1/1p1nqppp/p3p3/3p4/3P4/P1NBP1Q1/1P3PPP/2KR2R1 w - - 0 1",
}

// handleBench runs the fixed suite through the real search to depth
// (default 6, or args[0] if given), then prints the aggregate node count,
// nps, and "benchok".
func (e *Engine) handleBench(args []string) {
	depth := 6
	if len(args) > 0 {
		if d, err := parseBenchDepth(args[0]); err == nil {
			depth = d
		}
	}

	var totalNodes uint64
	start := time.Now()
	for _, fen := range benchSuite {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			continue
		}
		spec := search.SearchSpec{Root: pos, MaxDepth: depth}
		res := e.pool.Search(spec, nil)
		totalNodes += res.Nodes
	}
	elapsed := time.Since(start)

	var nps uint64
	if elapsed > 0 {
		nps = uint64(float64(totalNodes) / elapsed.Seconds())
	}
	fmt.Fprintf(e.out, "%d nodes %d nps\n", totalNodes, nps)
	fmt.Fprintln(e.out, "benchok")
}

func parseBenchDepth(s string) (int, error) {
	var d int
	_, err := fmt.Sscanf(s, "%d", &d)
	if d <= 0 {
		return 0, fmt.Errorf("non-positive depth")
	}
	return d, err
}
