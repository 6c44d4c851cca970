package search

import (
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hailam/lazysmp-chess/internal/board"
	"github.com/hailam/lazysmp-chess/internal/nnue"
	"github.com/hailam/lazysmp-chess/internal/tt"
)

// Pool is the persistent Lazy-SMP worker set: a fixed number of workers
// sharing one transposition table and nothing else, started and joined
// once per root search via errgroup.Group.
type Pool struct {
	tt      *tt.Table
	workers []*Worker
	stop    atomic.Bool

	nodes atomic.Uint64

	// newEvaluator returns a fresh Evaluator for one worker. Workers never
	// share accumulator state, so the pool asks for one instance per
	// worker rather than cloning a shared one.
	newEvaluator func() Evaluator
}

// NewPool builds a pool of n persistent workers (n clamped to [1,128],
// the UCI Threads option's own range) bound to a shared transposition
// table sized ttMB. net may be nil (or unloaded), in which case every
// worker falls back to the material evaluator.
func NewPool(n, ttMB int, net *nnue.Network) *Pool {
	if n < 1 {
		n = 1
	}
	if n > 128 {
		n = 128
	}

	p := &Pool{tt: tt.New(ttMB)}
	p.newEvaluator = func() Evaluator {
		if net == nil || !net.Loaded() {
			return NewMaterialEvaluator()
		}
		return nnue.NewEvaluator(net)
	}

	p.workers = make([]*Worker, n)
	for i := range p.workers {
		p.workers[i] = NewWorker(i, p.tt, p.newEvaluator(), &p.stop, nowNanos)
	}
	return p
}

func nowNanos() int64 { return time.Now().UnixNano() }

// Resize changes the worker count, rebuilding each new worker's own
// evaluator and history state. Existing workers below the new count keep
// their warm history tables (a "Threads" setoption mid-game is rare but
// must not crash).
func (p *Pool) Resize(n int) {
	if n < 1 {
		n = 1
	}
	if n > 128 {
		n = 128
	}
	if n == len(p.workers) {
		return
	}
	workers := make([]*Worker, n)
	copy(workers, p.workers)
	for i := len(p.workers); i < n; i++ {
		workers[i] = NewWorker(i, p.tt, p.newEvaluator(), &p.stop, nowNanos)
	}
	p.workers = workers
}

// ResizeHash rebuilds the shared transposition table at sizeMB,
// discarding all entries.
func (p *Pool) ResizeHash(sizeMB int) { p.tt.Resize(sizeMB) }

// ClearHash zeroes the transposition table (`ucinewgame`/`Clear Hash`).
func (p *Pool) ClearHash() { p.tt.Clear() }

// ClearHistory resets every worker's move-ordering and correction history
// (`ucinewgame`).
func (p *Pool) ClearHistory() {
	for _, w := range p.workers {
		w.ClearHistory()
	}
}

// ReloadEvaluators rebuilds every worker's evaluator. Needed when NNUE
// weights finish loading after the pool was constructed -- the workers were
// built against the then-unloaded network and would otherwise stay on the
// material fallback for the whole process lifetime.
func (p *Pool) ReloadEvaluators() {
	for _, w := range p.workers {
		w.eval = p.newEvaluator()
	}
}

// Stop signals every worker's shared stop flag; workers notice at the next
// 2048-node poll.
func (p *Pool) Stop() { p.stop.Store(true) }

// Result is what the pool returns once a root search completes: the voted
// best line plus the aggregate node count and throughput.
type Result struct {
	Depth     int
	Score     int
	PV        []board.Move
	Nodes     uint64
	Elapsed   time.Duration
	HashFull  int
}

// workerOutcome is one worker's full set of completed iterative-deepening
// results from a single root search, kept around only long enough for
// voteWinner to pick a result.
type workerOutcome struct {
	id      int
	results []IterationResult
}

// Search drives one root search: seeds every worker with its own clone of
// spec.Root, starts them concurrently via errgroup, and once they all
// return (stopped or exhausted maxDepth), votes on a final result. handler
// (may be nil) receives an Info snapshot after each of the main worker's
// (id 0) completed iterations; helpers never publish. When the main
// worker's iterative deepening ends -- soft time, depth, or node budget --
// the shared stop flag is raised so the helpers wind down instead of
// searching on to their own depth ceilings.
func (p *Pool) Search(spec SearchSpec, handler InfoHandler) Result {
	p.stop.Store(false)
	p.tt.NewSearch()
	p.nodes.Store(0)

	soft, hard := deadlines(spec)

	outcomes := make([]workerOutcome, len(p.workers))
	start := time.Now()

	var g errgroup.Group
	for i, w := range p.workers {
		i, w := i, w
		g.Go(func() error {
			w.SetRoot(spec.Root, spec.GameHistory)
			w.Deadlines(soft, hard)
			var cb func(IterationResult, uint64)
			if w.ID == 0 && handler != nil {
				cb = func(r IterationResult, _ uint64) {
					handler.OnInfo(p.infoSnapshot(w, r, start))
				}
			}
			outcomes[i] = workerOutcome{id: i, results: w.Run(spec, cb)}
			if w.ID == 0 {
				p.stop.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	total := p.liveNodes()
	p.nodes.Store(total)

	best := voteWinner(outcomes)
	res := Result{Nodes: total, Elapsed: elapsed, HashFull: p.tt.HashFull()}
	if best != nil && len(best.results) > 0 {
		last := best.results[len(best.results)-1]
		res.Depth = last.Depth
		res.Score = last.Score
		res.PV = last.PV
	}
	return res
}

// voteWinner scores each worker's last completed iteration by
// (score-min+C)*depth and picks the argmax, tie-breaking on raw score.
// Returns nil when no worker completed even one iteration (e.g. stopped
// before depth 1 finished).
func voteWinner(outcomes []workerOutcome) *workerOutcome {
	const voteConst = 1000

	minScore := 0
	any := false
	for i := range outcomes {
		if len(outcomes[i].results) == 0 {
			continue
		}
		s := outcomes[i].results[len(outcomes[i].results)-1].Score
		if !any || s < minScore {
			minScore = s
			any = true
		}
	}
	if !any {
		return nil
	}

	var winner *workerOutcome
	bestVote := -1 << 62
	bestScore := -Infinity
	for i := range outcomes {
		if len(outcomes[i].results) == 0 {
			continue
		}
		last := outcomes[i].results[len(outcomes[i].results)-1]
		vote := (last.Score - minScore + voteConst) * last.Depth
		if vote > bestVote || (vote == bestVote && last.Score > bestScore) {
			bestVote = vote
			bestScore = last.Score
			winner = &outcomes[i]
		}
	}
	return winner
}

// infoSnapshot assembles the Info published after one of the main worker's
// completed iterations: aggregate live node count across all workers,
// throughput, elapsed time, and TT fill alongside the iteration's own
// depth/score/PV.
func (p *Pool) infoSnapshot(w *Worker, r IterationResult, start time.Time) Info {
	elapsed := time.Since(start)
	nodes := p.liveNodes()
	var nps uint64
	if elapsed > 0 {
		nps = uint64(float64(nodes) / elapsed.Seconds())
	}
	return Info{
		Depth:    r.Depth,
		SelDepth: w.SelDepth(),
		Score:    r.Score,
		Nodes:    nodes,
		NPS:      nps,
		Time:     elapsed,
		HashFull: p.tt.HashFull(),
		PV:       r.PV,
	}
}

// liveNodes sums every worker's counter mid-search; each counter is
// atomic, so this is safe to call while helpers are still running.
func (p *Pool) liveNodes() uint64 {
	var total uint64
	for _, w := range p.workers {
		total += w.Nodes()
	}
	return total
}

// Nodes returns the aggregate node count across every worker as of the
// last completed Search (0 while a Search is running).
func (p *Pool) Nodes() uint64 { return p.nodes.Load() }

// HashFull reports the shared transposition table's fill permille.
func (p *Pool) HashFull() int { return p.tt.HashFull() }

// deadlines converts a SearchSpec's TimeAllocation and MaxDepth/Infinite
// flags into absolute unix-nano soft/hard deadlines, 0 meaning "no limit".
// Infinite and depth/node-only searches carry no deadline at all; the
// caller (UCI `stop`) is the only way to end them early.
func deadlines(spec SearchSpec) (soft, hard int64) {
	if spec.Infinite {
		return 0, 0
	}
	now := nowNanos()
	if spec.Time.Soft > 0 {
		soft = now + spec.Time.Soft.Nanoseconds()
	}
	if spec.Time.Max > 0 {
		hard = now + spec.Time.Max.Nanoseconds()
	}
	return soft, hard
}

// DefaultThreads is the UCI `Threads` option's starting value before any
// `setoption` is seen.
func DefaultThreads() int { return runtime.GOMAXPROCS(0) }
