// routed serves route queries over HTTP against a preprocessed dataset,
// memory-mapping the artifacts so worker processes share pages.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"route_engine/pkg/api"
	"route_engine/pkg/config"
	"route_engine/pkg/datastore"
	"route_engine/pkg/routing"
	"route_engine/pkg/storage"
)

const (
	exitOK      = 0
	exitBadArgs = 1
	exitCorrupt = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	base := flag.String("base", "", "artifact base path, e.g. region.osrm")
	addr := flag.String("addr", "", "listen address (default :5000)")
	configPath := flag.String("config", "", "optional YAML config")
	owned := flag.Bool("no-mmap", false, "read artifacts into owned buffers instead of mapping")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Str("component", "routed").Logger()

	cfg := config.DefaultServer()
	if err := config.Load(*configPath, &cfg); err != nil {
		logger.Error().Err(err).Msg("bad config")
		return exitBadArgs
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *owned {
		cfg.Mapped = false
	}
	if *base == "" {
		fmt.Fprintln(os.Stderr, "usage: routed -base <region.osrm>")
		return exitBadArgs
	}

	start := time.Now()

	entry, code := loadEntry(*base, cfg.Mapped, logger)
	if code != exitOK {
		return code
	}
	store := datastore.New(entry)

	// Return init-time temporaries to the OS before serving.
	runtime.GC()
	debug.FreeOSMemory()

	ds := entry.Engine.Dataset()
	logger.Info().
		Uint32("nodes", ds.QueryGraph.NumNodes).
		Int("edges", len(ds.QueryGraph.Edges)).
		Str("timestamp", ds.Timestamp).
		Dur("elapsed", time.Since(start)).
		Msg("dataset ready")

	handlers := api.NewHandlers(store, cfg.QueryTimeout, cfg.Mapped, logger)
	srv := api.NewServer(cfg, api.NewRouter(cfg, handlers, logger))

	if err := api.ListenAndServe(srv, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return exitBadArgs
	}
	return exitOK
}

func loadEntry(base string, mapped bool, logger zerolog.Logger) (*datastore.Entry, int) {
	load := func(open storage.Opener) (*routing.Dataset, error) {
		return storage.LoadDataset(base, open)
	}

	if mapped {
		region := storage.NewRegion()
		ds, err := load(region.Opener())
		if err != nil {
			region.Close()
			return nil, classify(err, logger)
		}
		return &datastore.Entry{Engine: routing.NewEngine(ds, logger), Region: region}, exitOK
	}

	ds, err := load(storage.OpenOwned)
	if err != nil {
		return nil, classify(err, logger)
	}
	return &datastore.Entry{Engine: routing.NewEngine(ds, logger)}, exitOK
}

func classify(err error, logger zerolog.Logger) int {
	logger.Error().Err(err).Msg("cannot load dataset")
	if errors.Is(err, storage.ErrCorrupt) || errors.Is(err, storage.ErrIncompatible) {
		return exitCorrupt
	}
	return exitBadArgs
}
