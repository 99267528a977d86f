// extract converts an OSM PBF file into the edge-expanded artifact set:
// node-based parsing, chain compression, and edge expansion with the
// selected profile.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"route_engine/pkg/config"
	"route_engine/pkg/expand"
	"route_engine/pkg/graph"
	"route_engine/pkg/osmdata"
	"route_engine/pkg/profile"
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
	input := flag.String("input", "", "path to the .osm.pbf file")
	output := flag.String("output", "", "artifact base path, e.g. region.osrm")
	configPath := flag.String("config", "", "optional YAML config")
	profileName := flag.String("profile", "", "routing profile (default car)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Str("component", "extract").Logger()

	cfg := config.DefaultExtract()
	if err := config.Load(*configPath, &cfg); err != nil {
		logger.Error().Err(err).Msg("bad config")
		return exitBadArgs
	}
	if *profileName != "" {
		cfg.Profile = *profileName
	}
	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "usage: extract -input <file.osm.pbf> -output <base>")
		return exitBadArgs
	}

	prof, err := profileByName(cfg.Profile)
	if err != nil {
		logger.Error().Err(err).Msg("unknown profile")
		return exitBadArgs
	}

	f, err := os.Open(*input)
	if err != nil {
		logger.Error().Err(err).Msg("cannot open input")
		return exitBadArgs
	}
	defer f.Close()

	start := time.Now()

	parsed, err := osmdata.Parse(context.Background(), f, prof, logger)
	if err != nil {
		logger.Error().Err(err).Msg("parse failed")
		return exitBadArgs
	}

	nb := osmdata.BuildGraph(parsed, logger)
	compressed := graph.Compress(nb)
	logger.Info().
		Int("edges", len(compressed.Edges)).
		Uint32("chains", compressed.Geometry.Count()).
		Msg("chain compression complete")

	eb := expand.Expand(compressed, prof, logger)

	timestamp := cfg.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}
	if err := storage.WriteExtract(*output, eb, nb.ExternalIDs, timestamp); err != nil {
		logger.Error().Err(err).Msg("write failed")
		return exitBadArgs
	}

	logger.Info().Dur("elapsed", time.Since(start)).Str("base", *output).Msg("extraction complete")
	return exitOK
}

func profileByName(name string) (profile.Profile, error) {
	switch name {
	case "car":
		return profile.NewCar(), nil
	default:
		return nil, fmt.Errorf("no profile named %q", name)
	}
}
