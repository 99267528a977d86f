// Package datastore owns the active dataset of a running query service
// and implements the zero-downtime reload rendezvous: readers never
// block each other, and a swap blocks readers only for the instant of
// the pointer exchange.
package datastore

import (
	"sync"

	"github.com/rs/zerolog"

	"route_engine/pkg/routing"
	"route_engine/pkg/storage"
)

// Entry is one loaded dataset generation with the resources backing it.
type Entry struct {
	Engine *routing.Engine
	Region *storage.Region // nil when the dataset owns its buffers
}

// Store mediates between query workers and the reloader.
type Store struct {
	// pendingUpdate admits at most one reload preparation at a time.
	pendingUpdate sync.Mutex

	// queryMu guards the in-flight counter and the active pointer; the
	// condition signals when the counter reaches zero.
	queryMu   sync.Mutex
	noQueries *sync.Cond
	inFlight  int

	active *Entry
}

// New creates a store serving the given dataset generation.
func New(entry *Entry) *Store {
	s := &Store{active: entry}
	s.noQueries = sync.NewCond(&s.queryMu)
	return s
}

// Acquire registers an in-flight query and returns the generation to
// run it against. Every Acquire must be paired with Release.
func (s *Store) Acquire() *Entry {
	s.queryMu.Lock()
	s.inFlight++
	entry := s.active
	s.queryMu.Unlock()
	return entry
}

// Release retires an in-flight query and wakes a waiting swap when the
// counter drains.
func (s *Store) Release() {
	s.queryMu.Lock()
	s.inFlight--
	if s.inFlight == 0 {
		s.noQueries.Broadcast()
	}
	s.queryMu.Unlock()
}

// Swap installs the next generation once all in-flight queries finish,
// returning the displaced one for teardown. Queries arriving during the
// wait run against the old generation and delay the swap until they
// drain.
func (s *Store) Swap(next *Entry) *Entry {
	s.pendingUpdate.Lock()
	defer s.pendingUpdate.Unlock()

	s.queryMu.Lock()
	for s.inFlight > 0 {
		s.noQueries.Wait()
	}
	old := s.active
	s.active = next
	s.queryMu.Unlock()
	return old
}

// Reload loads a fresh dataset from disk, into a new mapped region when
// mapped is set and into owned buffers otherwise, and swaps it in; a
// previous mapped generation is unmapped after the drain.
func (s *Store) Reload(base string, mapped bool, logger zerolog.Logger) error {
	var entry Entry
	var err error

	if mapped {
		region := storage.NewRegion()
		ds, loadErr := storage.LoadDataset(base, region.Opener())
		if loadErr != nil {
			region.Close()
			return loadErr
		}
		entry = Entry{Engine: routing.NewEngine(ds, logger), Region: region}
	} else {
		ds, loadErr := storage.LoadDataset(base, storage.OpenOwned)
		if loadErr != nil {
			return loadErr
		}
		entry = Entry{Engine: routing.NewEngine(ds, logger)}
	}

	old := s.Swap(&entry)
	if old != nil && old.Region != nil {
		err = old.Region.Close()
	}
	logger.Info().Str("base", base).Bool("mapped", mapped).Msg("dataset reloaded")
	return err
}
