package ch

import (
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config tunes the contraction scheduler.
type Config struct {
	// CoreFactor is the fraction of nodes left uncontracted as the core.
	// 0 contracts everything; 0.1 stops with 10% of nodes remaining.
	CoreFactor float64

	// Workers bounds parallelism; 0 uses the hardware concurrency.
	Workers int
}

// DefaultConfig returns full contraction on all cores.
func DefaultConfig() Config {
	return Config{CoreFactor: 0, Workers: runtime.NumCPU()}
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// contractionState carries one contraction phase. The graph is mutated
// only inside the serial commit step between parallel rounds.
type contractionState struct {
	g          *contractorGraph
	contracted []bool
	frozen     []bool // ineligible in this phase, left for later phases
	depth      []uint32
	level      []uint32
	rank       []uint32
	order      uint32
	round      uint32
	prio       []float64
	dirty      []bool
}

func newContractionState(g *contractorGraph, frozen []bool) *contractionState {
	n := g.numNodes()
	if frozen == nil {
		frozen = make([]bool, n)
	}
	dirty := make([]bool, n)
	for i := range dirty {
		dirty[i] = true
	}
	return &contractionState{
		g:          g,
		contracted: make([]bool, n),
		frozen:     frozen,
		depth:      make([]uint32, n),
		level:      make([]uint32, n),
		rank:       make([]uint32, n),
		prio:       make([]float64, n),
		dirty:      dirty,
	}
}

func (s *contractionState) clone() *contractionState {
	out := &contractionState{
		g:          s.g.clone(),
		contracted: append([]bool(nil), s.contracted...),
		frozen:     append([]bool(nil), s.frozen...),
		depth:      append([]uint32(nil), s.depth...),
		level:      append([]uint32(nil), s.level...),
		rank:       append([]uint32(nil), s.rank...),
		order:      s.order,
		round:      s.round,
		prio:       append([]float64(nil), s.prio...),
		dirty:      append([]bool(nil), s.dirty...),
	}
	return out
}

func (s *contractionState) live(v uint32) bool {
	return !s.contracted[v] && !s.frozen[v]
}

// beats is the strict priority order with the node id as the stable
// tiebreaker, making contraction deterministic for a fixed worker count.
func (s *contractionState) beats(a, b uint32) bool {
	if s.prio[a] != s.prio[b] {
		return s.prio[a] < s.prio[b]
	}
	return a < b
}

// run contracts eligible nodes in independent-set rounds until only
// coreTarget remain. Returns the number of shortcuts inserted.
func run(s *contractionState, cfg Config, coreTarget int, logger zerolog.Logger) int {
	workers := cfg.workers()
	totalShortcuts := 0

	// Per-worker witness state, reused across rounds.
	states := make([]*witnessState, workers)
	for i := range states {
		states[i] = newWitnessState(s.g.numNodes())
	}

	for {
		var liveNodes []uint32
		for v := uint32(0); v < s.g.numNodes(); v++ {
			if s.live(v) {
				liveNodes = append(liveNodes, v)
			}
		}
		if len(liveNodes) <= coreTarget {
			break
		}

		// Parallel priority evaluation for dirty nodes.
		var dirtyNodes []uint32
		for _, v := range liveNodes {
			if s.dirty[v] {
				dirtyNodes = append(dirtyNodes, v)
			}
		}
		parallelChunks(dirtyNodes, workers, func(worker int, chunk []uint32) {
			for _, v := range chunk {
				s.prio[v] = priority(s.g, states[worker], v, s.contracted, s.depth)
				s.dirty[v] = false
			}
		})

		// Independent set: local minima over the two-hop neighborhood.
		// Membership only reads priorities, so it parallelizes freely.
		independent := make([]bool, len(liveNodes))
		parallelChunks(liveNodes, workers, func(_ int, chunk []uint32) {
			for _, v := range chunk {
				if s.isLocalMinimum(v) {
					independent[indexOf(liveNodes, v)] = true
				}
			}
		})

		var set []uint32
		for i, v := range liveNodes {
			if independent[i] {
				set = append(set, v)
			}
		}
		if len(set) == 0 {
			break // cannot happen with a strict tiebreak; guards a stall
		}

		// Parallel shortcut synthesis over the independent set.
		results := make([][]shortcut, len(set))
		parallelChunks(set, workers, func(worker int, chunk []uint32) {
			for _, v := range chunk {
				idx := indexOf(set, v)
				sc, _, _ := contractNode(s.g, states[worker], v, s.contracted, false)
				results[idx] = sc
			}
		})

		// Serial commit in id order.
		for i, v := range set {
			s.contracted[v] = true
			s.rank[v] = s.order
			s.order++
			s.level[v] = s.round
			commitShortcuts(s.g, results[i])
			totalShortcuts += len(results[i])

			for j := range s.g.adj[v] {
				n := s.g.adj[v][j].target
				if !s.live(n) {
					continue
				}
				if s.depth[v]+1 > s.depth[n] {
					s.depth[n] = s.depth[v] + 1
				}
				s.markDirtyAround(n)
			}
		}
		s.round++

		if s.round%16 == 0 {
			logger.Info().
				Uint32("round", s.round).
				Uint32("contracted", s.order).
				Int("shortcuts", totalShortcuts).
				Msg("contraction progress")
		}
	}

	return totalShortcuts
}

// isLocalMinimum reports whether v's priority beats every live node in
// its two-hop neighborhood, which guarantees contracting the set
// members concurrently cannot perturb each other's witness searches.
func (s *contractionState) isLocalMinimum(v uint32) bool {
	for i := range s.g.adj[v] {
		n1 := s.g.adj[v][i].target
		if n1 != v && s.live(n1) && !s.beats(v, n1) {
			return false
		}
		if s.contracted[n1] {
			continue
		}
		for j := range s.g.adj[n1] {
			n2 := s.g.adj[n1][j].target
			if n2 != v && s.live(n2) && !s.beats(v, n2) {
				return false
			}
		}
	}
	return true
}

// markDirtyAround queues priority recomputation for n and its live
// neighbors.
func (s *contractionState) markDirtyAround(n uint32) {
	s.dirty[n] = true
	for i := range s.g.adj[n] {
		m := s.g.adj[n][i].target
		if s.live(m) {
			s.dirty[m] = true
		}
	}
}

// finishCore assigns ranks and a top level to everything left alive.
func (s *contractionState) finishCore() (core []bool) {
	core = make([]bool, s.g.numNodes())
	top := s.round + 1
	for v := uint32(0); v < s.g.numNodes(); v++ {
		if !s.contracted[v] {
			core[v] = true
			s.rank[v] = s.order
			s.order++
			s.level[v] = top
		}
	}
	return core
}

// parallelChunks fans work out over contiguous chunks, one goroutine per
// worker. The callback receives the worker index for per-worker state.
func parallelChunks(items []uint32, workers int, fn func(worker int, chunk []uint32)) {
	if len(items) == 0 {
		return
	}
	if workers > len(items) {
		workers = len(items)
	}
	chunkSize := (len(items) + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		if start >= len(items) {
			break
		}
		end := min(start+chunkSize, len(items))
		worker, chunk := w, items[start:end]
		g.Go(func() error {
			fn(worker, chunk)
			return nil
		})
	}
	_ = g.Wait()
}

// indexOf locates v in a sorted unique slice by binary search.
func indexOf(sorted []uint32, v uint32) int {
	return sort.Search(len(sorted), func(i int) bool { return sorted[i] >= v })
}
