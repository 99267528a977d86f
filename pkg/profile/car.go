package profile

import (
	"math"
	"strconv"
	"strings"
)

// carSpeeds maps highway values to default speeds in km/h.
var carSpeeds = map[string]float64{
	"motorway":       90,
	"motorway_link":  45,
	"trunk":          85,
	"trunk_link":     40,
	"primary":        65,
	"primary_link":   30,
	"secondary":      55,
	"secondary_link": 25,
	"tertiary":       40,
	"tertiary_link":  20,
	"unclassified":   25,
	"residential":    25,
	"living_street":  10,
	"service":        15,
}

var carClasses = map[string]RoadClass{
	"motorway":       ClassMotorway,
	"motorway_link":  ClassMotorway,
	"trunk":          ClassTrunk,
	"trunk_link":     ClassTrunk,
	"primary":        ClassPrimary,
	"primary_link":   ClassPrimary,
	"secondary":      ClassSecondary,
	"secondary_link": ClassSecondary,
	"tertiary":       ClassTertiary,
	"tertiary_link":  ClassTertiary,
	"unclassified":   ClassResidential,
	"residential":    ClassResidential,
	"living_street":  ClassLivingStreet,
	"service":        ClassService,
}

// Car is the default driving profile.
type Car struct {
	UTurnPenaltyDs  uint32 // deci-seconds; applied when u-turns are allowed
	AllowUTurns     bool
	SignalPenaltyDs uint32
}

// NewCar returns the car profile with its standard penalties.
func NewCar() *Car {
	return &Car{
		UTurnPenaltyDs:  200, // 20 s
		AllowUTurns:     false,
		SignalPenaltyDs: 20, // 2 s
	}
}

// Way implements Profile.
func (c *Car) Way(tags map[string]string) (WayResult, bool) {
	hw := tags["highway"]
	speed, drivable := carSpeeds[hw]

	// Ferries are routable at a fixed 5 km/h crawl; the duration tag is
	// not read.
	if !drivable && tags["route"] == "ferry" {
		return c.ferryWay(tags)
	}
	if !drivable {
		return WayResult{}, false
	}

	// Area highways are plazas, not roads.
	if tags["area"] == "yes" {
		return WayResult{}, false
	}

	access := tags["access"]
	if access == "no" || tags["motor_vehicle"] == "no" || tags["motorcar"] == "no" {
		return WayResult{}, false
	}
	restricted := access == "private" || access == "destination" || access == "delivery"

	if ms, ok := parseMaxspeed(tags["maxspeed"]); ok {
		speed = math.Min(speed, ms)
	}

	roundabout := tags["junction"] == "roundabout"

	fwd := speed
	bwd := speed
	contraFlow := false
	if hw == "motorway" || hw == "motorway_link" || roundabout {
		bwd = 0
	}
	switch tags["oneway"] {
	case "yes", "true", "1":
		bwd = 0
		contraFlow = tags["oneway:conditional"] != "" || tags["traffic_calming"] != ""
	case "-1", "reverse":
		fwd, bwd = 0, speed
	case "no":
		fwd, bwd = speed, speed
	case "reversible":
		// Time-dependent flow direction is not routable statically.
		return WayResult{}, false
	}
	if fwd == 0 && bwd == 0 {
		return WayResult{}, false
	}

	modeFwd := ModeDriving
	modeBwd := ModeDriving
	if fwd == 0 {
		modeFwd = ModeInaccessible
	}
	if bwd == 0 {
		modeBwd = ModeInaccessible
	}

	return WayResult{
		ForwardSpeedKmh:  fwd,
		BackwardSpeedKmh: bwd,
		ModeForward:      modeFwd,
		ModeBackward:     modeBwd,
		Name:             tags["name"],
		Lanes:            tags["lanes"],
		Classification:   carClasses[hw],
		AccessRestricted: restricted,
		Roundabout:       roundabout,
		ContraFlow:       contraFlow,
	}, true
}

func (c *Car) ferryWay(tags map[string]string) (WayResult, bool) {
	if tags["motor_vehicle"] == "no" || tags["motorcar"] == "no" {
		return WayResult{}, false
	}
	return WayResult{
		ForwardSpeedKmh:  5,
		BackwardSpeedKmh: 5,
		ModeForward:      ModeFerry,
		ModeBackward:     ModeFerry,
		Name:             tags["name"],
		Classification:   ClassFerry,
	}, true
}

// Node implements Profile.
func (c *Car) Node(tags map[string]string) NodeResult {
	var res NodeResult

	if barrier := tags["barrier"]; barrier != "" {
		switch barrier {
		case "gate", "lift_gate", "no", "entrance", "cattle_grid", "border_control",
			"toll_booth", "sally_port", "bump_gate", "kerb", "height_restrictor":
			// Passable barrier types.
		default:
			access := tags["access"]
			if access != "yes" && access != "permissive" && access != "designated" {
				res.IsBarrier = true
			}
		}
	}

	if tags["highway"] == "traffic_signals" {
		res.IsSignal = true
	}

	return res
}

// TurnPenalty implements Profile. The penalty grows with how far the turn
// deviates from straight, flattening out for gentle bends.
func (c *Car) TurnPenalty(angleDeg float64, from, to TravelMode) uint32 {
	if from == ModeFerry || to == ModeFerry {
		return 0
	}
	deviation := math.Abs(angleDeg - 180)
	if deviation < 20 {
		return 0
	}
	// Up to 7.5 seconds for a full reversal.
	penalty := 75 * (deviation - 20) / 160
	return uint32(math.Round(penalty))
}

// UTurnPenalty implements Profile.
func (c *Car) UTurnPenalty() (uint32, bool) {
	return c.UTurnPenaltyDs, c.AllowUTurns
}

// TrafficSignalPenalty implements Profile.
func (c *Car) TrafficSignalPenalty() uint32 { return c.SignalPenaltyDs }

// Exceptions implements Profile.
func (c *Car) Exceptions() []string {
	return []string{"motorcar", "motor_vehicle", "vehicle"}
}

// UseTurnRestrictions implements Profile.
func (c *Car) UseTurnRestrictions() bool { return true }

// parseMaxspeed understands plain km/h numbers and "NN mph".
func parseMaxspeed(v string) (float64, bool) {
	if v == "" || v == "none" || v == "signals" {
		return 0, false
	}
	v = strings.TrimSpace(v)
	if mph, ok := strings.CutSuffix(v, "mph"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(mph), 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n * 1.609344, true
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
