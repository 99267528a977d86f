// Package profile defines the routing-profile contract consumed by the
// extraction and expansion pipeline. A profile is a bundle of pure
// functions over way and node tags; implementations must be safe for
// concurrent calls.
package profile

// TravelMode tags each directed segment with how it is traversed.
type TravelMode uint8

const (
	ModeInaccessible TravelMode = iota
	ModeDriving
	ModeFerry
	ModeMovableBridge
)

// RoadClass is a coarse functional classification of a way.
type RoadClass uint8

const (
	ClassUnknown RoadClass = iota
	ClassMotorway
	ClassTrunk
	ClassPrimary
	ClassSecondary
	ClassTertiary
	ClassResidential
	ClassService
	ClassLivingStreet
	ClassFerry
)

// WayResult is the profile verdict for one way.
type WayResult struct {
	ForwardSpeedKmh  float64
	BackwardSpeedKmh float64 // 0 disables the backward direction
	ModeForward      TravelMode
	ModeBackward     TravelMode
	Name             string
	Lanes            string
	Classification   RoadClass
	AccessRestricted bool
	Roundabout       bool
	ContraFlow       bool // one-way forced by traffic management, not geometry
}

// NodeResult is the profile verdict for one node.
type NodeResult struct {
	IsBarrier bool
	IsSignal  bool
}

// Profile is the callback bundle driving extraction and edge expansion.
// All functions are pure with respect to their inputs and may be called
// from multiple goroutines.
type Profile interface {
	// Way judges a way's tags. ok is false when the way is not routable.
	Way(tags map[string]string) (WayResult, bool)

	// Node judges a node's tags for barriers and traffic signals.
	Node(tags map[string]string) NodeResult

	// TurnPenalty returns the penalty in deci-seconds for a turn of the
	// given angle (180 = straight) between two travel modes.
	TurnPenalty(angleDeg float64, from, to TravelMode) uint32

	// UTurnPenalty returns the penalty for reversing onto the entry
	// edge. allowed=false forbids u-turns entirely.
	UTurnPenalty() (penalty uint32, allowed bool)

	// TrafficSignalPenalty is added to every edge entering a signal node.
	TrafficSignalPenalty() uint32

	// Exceptions lists the vehicle classes this profile belongs to.
	// A restriction carrying one of these in its except list is ignored.
	Exceptions() []string

	// UseTurnRestrictions reports whether restriction relations apply.
	UseTurnRestrictions() bool
}
