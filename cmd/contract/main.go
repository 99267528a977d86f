// contract builds the hierarchy: it loads the extract artifacts,
// applies CSV traffic overrides, runs the contraction scheduler, and
// writes the query graph.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"route_engine/pkg/ch"
	"route_engine/pkg/config"
	"route_engine/pkg/graph"
	"route_engine/pkg/profile"
	"route_engine/pkg/storage"
	"route_engine/pkg/traffic"
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
	base := flag.String("base", "", "artifact base path from extract")
	configPath := flag.String("config", "", "optional YAML config")
	coreFactor := flag.Float64("core-factor", -1, "fraction of nodes left uncontracted")
	threads := flag.Int("threads", 0, "worker count (default all cores)")
	speedFiles := flag.String("segment-speed-files", "", "comma-separated speed CSVs, later files win")
	penaltyFiles := flag.String("turn-penalty-files", "", "comma-separated turn penalty CSVs")
	excludes := flag.String("exclude-filters", "", "comma-separated metric filters, e.g. no_ferry")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Str("component", "contract").Logger()

	cfg := config.DefaultContract()
	if err := config.Load(*configPath, &cfg); err != nil {
		logger.Error().Err(err).Msg("bad config")
		return exitBadArgs
	}
	if *coreFactor >= 0 {
		cfg.CoreFactor = *coreFactor
	}
	if *threads > 0 {
		cfg.Threads = *threads
	}
	if *speedFiles != "" {
		cfg.SegmentSpeedFiles = splitList(*speedFiles)
	}
	if *penaltyFiles != "" {
		cfg.TurnPenaltyFiles = splitList(*penaltyFiles)
	}
	if *excludes != "" {
		cfg.ExcludeFilters = splitList(*excludes)
	}
	if *base == "" {
		fmt.Fprintln(os.Stderr, "usage: contract -base <region.osrm>")
		return exitBadArgs
	}

	start := time.Now()

	bundle, err := storage.LoadExtract(*base, storage.OpenOwned)
	if err != nil {
		logger.Error().Err(err).Msg("cannot load extract artifacts")
		if errors.Is(err, storage.ErrCorrupt) || errors.Is(err, storage.ErrIncompatible) {
			return exitCorrupt
		}
		return exitBadArgs
	}

	overrides, err := traffic.LoadSpeedFiles(cfg.SegmentSpeedFiles, logger)
	if err != nil {
		logger.Error().Err(err).Msg("cannot load speed files")
		return exitBadArgs
	}
	if err := overrides.AddPenaltyFiles(cfg.TurnPenaltyFiles, logger); err != nil {
		logger.Error().Err(err).Msg("cannot load penalty files")
		return exitBadArgs
	}
	traffic.Apply(bundle.EdgeBased, bundle.ExternalIDs, overrides, logger)

	filters, err := buildFilters(cfg.ExcludeFilters)
	if err != nil {
		logger.Error().Err(err).Msg("bad exclude filter")
		return exitBadArgs
	}

	chCfg := ch.Config{CoreFactor: cfg.CoreFactor, Workers: cfg.Threads}
	qg := ch.ContractExcludable(bundle.EdgeBased, chCfg, filters, logger)

	if err := storage.WriteContracted(*base, bundle.EdgeBased, qg, overrides.SourceNames, bundle.BuildID); err != nil {
		logger.Error().Err(err).Msg("write failed")
		return exitBadArgs
	}

	logger.Info().Dur("elapsed", time.Since(start)).Msg("contraction complete")
	return exitOK
}

// buildFilters maps filter names onto node predicates. The default
// metric is always first when any exclusion is requested.
func buildFilters(names []string) ([]ch.ExcludeFilter, error) {
	if len(names) == 0 {
		return nil, nil
	}
	filters := []ch.ExcludeFilter{
		{Name: "default", Allowed: func(graph.EdgeBasedNode) bool { return true }},
	}
	for _, name := range names {
		switch name {
		case "no_ferry":
			filters = append(filters, ch.ExcludeFilter{
				Name:    name,
				Allowed: func(n graph.EdgeBasedNode) bool { return n.Mode != profile.ModeFerry },
			})
		case "no_restricted":
			filters = append(filters, ch.ExcludeFilter{
				Name:    name,
				Allowed: func(n graph.EdgeBasedNode) bool { return !n.AccessRestricted },
			})
		default:
			return nil, fmt.Errorf("unknown filter %q", name)
		}
	}
	return filters, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
