// Package traffic applies static per-segment speed and per-turn penalty
// overrides from CSV files onto the edge-based graph. Files stack: the
// last file mentioning a segment or turn wins.
package traffic

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"route_engine/pkg/graph"
)

// ErrBadLine marks a malformed override line.
var ErrBadLine = errors.New("traffic: malformed override line")

// DisabledWeightDs is the weight of a segment disabled by a zero-speed
// override.
const DisabledWeightDs = graph.DisabledWeightDs

// SpeedEntry is the effective override for one directed segment.
type SpeedEntry struct {
	SpeedKmh float64 // 0 disables the segment
	Source   uint8   // 1-based file index
}

// PenaltyEntry is the effective override for one turn.
type PenaltyEntry struct {
	PenaltyDs uint32
	Source    uint8
}

// Overrides is the merged view over all stacked CSV files.
type Overrides struct {
	Speeds    map[[2]int64]SpeedEntry
	Penalties map[[3]int64]PenaltyEntry

	// Names of the contributing files, 1-based to match Source; index 0
	// is the profile itself.
	SourceNames []string
}

// LoadSpeedFiles parses segment-speed CSVs: osm_from,osm_to,speed_kmh
// with an optional trailing comment column.
func LoadSpeedFiles(paths []string, logger zerolog.Logger) (*Overrides, error) {
	o := &Overrides{
		Speeds:      make(map[[2]int64]SpeedEntry),
		Penalties:   make(map[[3]int64]PenaltyEntry),
		SourceNames: []string{"profile"},
	}
	return o, o.addSpeedFiles(paths, logger)
}

func (o *Overrides) addSpeedFiles(paths []string, logger zerolog.Logger) error {
	for _, path := range paths {
		source := uint8(len(o.SourceNames))
		o.SourceNames = append(o.SourceNames, filepath.Base(path))

		count := 0
		err := eachLine(path, func(lineNo int, fields []string) error {
			if len(fields) < 3 {
				return fmt.Errorf("%w: %s:%d needs from,to,speed", ErrBadLine, path, lineNo)
			}
			from, err1 := strconv.ParseInt(fields[0], 10, 64)
			to, err2 := strconv.ParseInt(fields[1], 10, 64)
			speed, err3 := strconv.ParseFloat(fields[2], 64)
			if err1 != nil || err2 != nil || err3 != nil || speed < 0 {
				return fmt.Errorf("%w: %s:%d", ErrBadLine, path, lineNo)
			}
			o.Speeds[[2]int64{from, to}] = SpeedEntry{SpeedKmh: speed, Source: source}
			count++
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info().Str("file", path).Int("segments", count).Msg("segment speeds loaded")
	}
	return nil
}

// AddPenaltyFiles parses turn-penalty CSVs: osm_from,osm_via,osm_to,
// penalty_seconds with an optional trailing comment column.
func (o *Overrides) AddPenaltyFiles(paths []string, logger zerolog.Logger) error {
	for _, path := range paths {
		source := uint8(len(o.SourceNames))
		o.SourceNames = append(o.SourceNames, filepath.Base(path))

		count := 0
		err := eachLine(path, func(lineNo int, fields []string) error {
			if len(fields) < 4 {
				return fmt.Errorf("%w: %s:%d needs from,via,to,penalty", ErrBadLine, path, lineNo)
			}
			from, err1 := strconv.ParseInt(fields[0], 10, 64)
			via, err2 := strconv.ParseInt(fields[1], 10, 64)
			to, err3 := strconv.ParseInt(fields[2], 10, 64)
			seconds, err4 := strconv.ParseFloat(fields[3], 64)
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil || seconds < 0 {
				return fmt.Errorf("%w: %s:%d", ErrBadLine, path, lineNo)
			}
			o.Penalties[[3]int64{from, via, to}] = PenaltyEntry{
				PenaltyDs: uint32(seconds*10 + 0.5),
				Source:    source,
			}
			count++
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info().Str("file", path).Int("turns", count).Msg("turn penalties loaded")
	}
	return nil
}

func eachLine(path string, fn func(lineNo int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("traffic: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if err := fn(lineNo, fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}
