// Package uci implements the line-oriented UCI protocol parser/printer,
// the option registry, and the bench harness. None of it is part of the
// search core itself -- it only ever talks to internal/search,
// internal/board and internal/nnue through their exported interfaces
// (SearchSpec, TimeAllocation, InfoHandler, the NNUE network loader).
package uci

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hailam/lazysmp-chess/internal/board"
	"github.com/hailam/lazysmp-chess/internal/nnue"
	"github.com/hailam/lazysmp-chess/internal/search"
)

const (
	engineName   = "lazysmp-chess"
	engineAuthor = "lazysmp-chess contributors"

	defaultHashMB = 64
	minHashMB     = 1
	maxHashMB     = 1024
	minThreads    = 1
	maxThreads    = 128
)

// Engine bundles the worker pool and the mutable UCI-session state (current
// position, game history, NNUE network) that the search core itself has no
// concept of.
type Engine struct {
	pool *search.Pool
	net  *nnue.Network

	pos     *board.Position
	history []uint64

	threads int
	hashMB  int

	searching     atomic.Bool
	stopRequested atomic.Bool
	searchDone    chan struct{}
	stopCh        chan struct{}

	out io.Writer
}

// New returns a UCI engine with default options applied, ready for Run.
func New(out io.Writer) *Engine {
	e := &Engine{
		net:     nnue.NewNetwork(),
		pos:     board.NewPosition(),
		threads: search.DefaultThreads(),
		hashMB:  defaultHashMB,
		out:     out,
	}
	if e.threads < minThreads {
		e.threads = minThreads
	}
	if e.threads > maxThreads {
		e.threads = maxThreads
	}
	e.pool = search.NewPool(e.threads, e.hashMB, e.net)
	e.history = []uint64{e.pos.Hash}
	return e
}

// LoadWeights attempts to load an NNUE weight file; on failure it prints
// an info line and leaves the pool on the material fallback evaluator. On
// success the pool's workers are rebound to the now-loaded network.
func (e *Engine) LoadWeights(r io.Reader) {
	if err := nnue.LoadWeights(e.net, r); err != nil {
		fmt.Fprintf(e.out, "info string NNUE weight load failed: %v (using material evaluator)\n", err)
		return
	}
	e.pool.ReloadEvaluators()
}

// Run drives the UCI main loop, reading commands from in and writing
// responses to e.out, until "quit" or EOF.
func (e *Engine) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uci":
			e.handleUCI()
		case "isready":
			fmt.Fprintln(e.out, "readyok")
		case "ucinewgame":
			e.handleNewGame()
		case "setoption":
			e.handleSetOption(args)
		case "position":
			e.handlePosition(args)
		case "go":
			e.handleGo(args)
		case "stop":
			e.handleStop()
		case "ponderhit":
			// Reserved; pondering is not implemented.
		case "bench":
			e.handleBench(args)
		case "quit":
			e.handleStop()
			return
		}
	}
}

func (e *Engine) handleUCI() {
	fmt.Fprintf(e.out, "id name %s\n", engineName)
	fmt.Fprintf(e.out, "id author %s\n", engineAuthor)
	fmt.Fprintf(e.out, "option name Hash type spin default %d min %d max %d\n", defaultHashMB, minHashMB, maxHashMB)
	fmt.Fprintf(e.out, "option name Threads type spin default %d min %d max %d\n", search.DefaultThreads(), minThreads, maxThreads)
	fmt.Fprintln(e.out, "option name Clear Hash type button")
	fmt.Fprintln(e.out, "option name Move Overhead type spin default 50 min 0 max 5000")
	fmt.Fprintln(e.out, "uciok")
}

func (e *Engine) handleNewGame() {
	e.handleStop()
	e.pool.ClearHash()
	e.pool.ClearHistory()
	e.pos = board.NewPosition()
	e.history = []uint64{e.pos.Hash}
}

// handleSetOption applies "setoption name X value V" (and the valueless
// "Clear Hash" button).
func (e *Engine) handleSetOption(args []string) {
	var name, value string
	var inName, inValue bool
	for _, a := range args {
		switch a {
		case "name":
			inName, inValue = true, false
			continue
		case "value":
			inName, inValue = false, true
			continue
		}
		if inName {
			if name != "" {
				name += " "
			}
			name += a
		} else if inValue {
			if value != "" {
				value += " "
			}
			value += a
		}
	}

	switch name {
	case "Hash":
		if mb, err := strconv.Atoi(value); err == nil {
			e.hashMB = clampInt(mb, minHashMB, maxHashMB)
			e.pool.ResizeHash(e.hashMB)
		}
	case "Threads":
		if n, err := strconv.Atoi(value); err == nil {
			e.threads = clampInt(n, minThreads, maxThreads)
			e.pool.Resize(e.threads)
		}
	case "Clear Hash":
		e.pool.ClearHash()
	case "Move Overhead":
		if ms, err := strconv.Atoi(value); err == nil {
			SetMoveOverhead(time.Duration(ms) * time.Millisecond)
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// handlePosition applies "position [startpos|fen FEN] [moves ...]". An
// illegal move string anywhere in the list stops the replay; moves
// already applied stay applied.
func (e *Engine) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	movesAt := len(args)
	for i, a := range args {
		if a == "moves" {
			movesAt = i
			break
		}
	}

	switch args[0] {
	case "startpos":
		e.pos = board.NewPosition()
	case "fen":
		fen := strings.Join(args[1:movesAt], " ")
		pos, err := board.ParseFEN(fen)
		if err != nil {
			fmt.Fprintf(e.out, "info string Invalid FEN: %v\n", err)
			return
		}
		e.pos = pos
	default:
		return
	}

	e.history = []uint64{e.pos.Hash}
	if movesAt >= len(args) {
		return
	}
	for _, s := range args[movesAt+1:] {
		m, err := board.ParseMove(s, e.pos)
		if err != nil {
			fmt.Fprintf(e.out, "info string Invalid move: %s\n", s)
			return
		}
		if !e.pos.MakeMove(m) {
			fmt.Fprintf(e.out, "info string Illegal move: %s\n", s)
			return
		}
		e.history = append(e.history, e.pos.Hash)
	}
}

// handleGo starts an asynchronous root search.
func (e *Engine) handleGo(args []string) {
	if e.searching.Load() {
		return
	}
	opts := parseGoOptions(args)
	alloc := TimeAllocation(e.pos.SideToMove, e.pos, opts)

	spec := search.SearchSpec{
		Root:        e.pos.Copy(),
		GameHistory: append([]uint64(nil), e.history...),
		Time:        alloc,
		MaxDepth:    opts.Depth,
		MaxNodes:    opts.Nodes,
		Infinite:    opts.Infinite,
	}

	e.searching.Store(true)
	e.stopRequested.Store(false)
	e.searchDone = make(chan struct{})
	var waitStop chan struct{}
	if opts.Infinite {
		waitStop = make(chan struct{})
	}
	e.stopCh = waitStop

	go func() {
		defer close(e.searchDone)
		res := e.pool.Search(spec, e)

		// "go infinite" holds the bestmove until "stop" arrives, even when
		// the search itself ran out of depth first.
		if waitStop != nil {
			<-waitStop
		}
		e.searching.Store(false)

		best := board.NoMove
		if len(res.PV) > 0 {
			best = res.PV[0]
		}
		if best == board.NoMove {
			// Fallback: first legal move, or the null move for a
			// checkmated/stalemated position.
			legal := spec.Root.GenerateLegalMoves()
			if legal.Len() > 0 {
				best = legal.Get(0)
			}
		}
		if best == board.NoMove {
			fmt.Fprintln(e.out, "bestmove 0000")
			return
		}
		ponder := board.NoMove
		if len(res.PV) > 1 {
			ponder = res.PV[1]
		}
		if ponder == board.NoMove {
			fmt.Fprintf(e.out, "bestmove %s\n", best.String())
		} else {
			fmt.Fprintf(e.out, "bestmove %s ponder %s\n", best.String(), ponder.String())
		}
	}()
}

// OnInfo implements search.InfoHandler, formatting one completed
// iteration's snapshot as a UCI info line.
func (e *Engine) OnInfo(info search.Info) {
	var scoreField string
	if info.Score >= search.MateScore-search.MaxPly {
		mateIn := (search.MateScore - info.Score + 1) / 2
		scoreField = fmt.Sprintf("mate %d", mateIn)
	} else if info.Score <= -search.MateScore+search.MaxPly {
		mateIn := -(search.MateScore + info.Score + 1) / 2
		scoreField = fmt.Sprintf("mate %d", mateIn)
	} else {
		scoreField = fmt.Sprintf("cp %d", info.Score)
	}

	pvStr := make([]string, len(info.PV))
	for i, m := range info.PV {
		pvStr[i] = m.String()
	}

	fmt.Fprintf(e.out, "info depth %d seldepth %d multipv 1 score %s nodes %d nps %d time %d hashfull %d pv %s\n",
		info.Depth, info.SelDepth, scoreField, info.Nodes, info.NPS, info.Time.Milliseconds(), info.HashFull, strings.Join(pvStr, " "))
}

// handleStop signals the shared stop flag and blocks until the in-flight
// search's goroutine has published its bestmove.
func (e *Engine) handleStop() {
	if !e.searching.Load() {
		return
	}
	if e.stopRequested.CompareAndSwap(false, true) && e.stopCh != nil {
		close(e.stopCh)
	}
	e.pool.Stop()
	<-e.searchDone
}

// parseGoOptions parses "go"'s space-separated keyword arguments.
func parseGoOptions(args []string) GoOptions {
	var opts GoOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			i++
			if i < len(args) {
				opts.Depth, _ = strconv.Atoi(args[i])
			}
		case "nodes":
			i++
			if i < len(args) {
				n, _ := strconv.ParseUint(args[i], 10, 64)
				opts.Nodes = n
			}
		case "movetime":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				opts.MoveTime = time.Duration(ms) * time.Millisecond
			}
		case "wtime":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				opts.WTime = time.Duration(ms) * time.Millisecond
			}
		case "btime":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				opts.BTime = time.Duration(ms) * time.Millisecond
			}
		case "winc":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				opts.WInc = time.Duration(ms) * time.Millisecond
			}
		case "binc":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				opts.BInc = time.Duration(ms) * time.Millisecond
			}
		case "movestogo":
			i++
			if i < len(args) {
				opts.MovesToGo, _ = strconv.Atoi(args[i])
			}
		case "infinite":
			opts.Infinite = true
		case "ponder":
			opts.Ponder = true
		}
	}
	return opts
}
