package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarWayDefaults(t *testing.T) {
	car := NewCar()

	res, ok := car.Way(map[string]string{"highway": "residential", "name": "Mill Road"})
	require.True(t, ok)
	assert.Equal(t, 25.0, res.ForwardSpeedKmh)
	assert.Equal(t, 25.0, res.BackwardSpeedKmh)
	assert.Equal(t, "Mill Road", res.Name)
	assert.Equal(t, ClassResidential, res.Classification)
	assert.Equal(t, ModeDriving, res.ModeForward)
	assert.False(t, res.Roundabout)
}

func TestCarWayRejections(t *testing.T) {
	car := NewCar()

	cases := map[string]map[string]string{
		"footway":       {"highway": "footway"},
		"no access":     {"highway": "primary", "access": "no"},
		"motor vehicle": {"highway": "primary", "motor_vehicle": "no"},
		"area":          {"highway": "service", "area": "yes"},
		"reversible":    {"highway": "primary", "oneway": "reversible"},
		"untagged":      {},
	}
	for name, tags := range cases {
		_, ok := car.Way(tags)
		assert.False(t, ok, name)
	}
}

func TestCarWayOneway(t *testing.T) {
	car := NewCar()

	res, ok := car.Way(map[string]string{"highway": "primary", "oneway": "yes"})
	require.True(t, ok)
	assert.Equal(t, 0.0, res.BackwardSpeedKmh)
	assert.Equal(t, ModeInaccessible, res.ModeBackward)

	res, ok = car.Way(map[string]string{"highway": "primary", "oneway": "-1"})
	require.True(t, ok)
	assert.Equal(t, 0.0, res.ForwardSpeedKmh)
	assert.Equal(t, 65.0, res.BackwardSpeedKmh)

	// Motorways and roundabouts are implied oneway.
	res, ok = car.Way(map[string]string{"highway": "motorway"})
	require.True(t, ok)
	assert.Equal(t, 0.0, res.BackwardSpeedKmh)

	res, ok = car.Way(map[string]string{"highway": "tertiary", "junction": "roundabout"})
	require.True(t, ok)
	assert.True(t, res.Roundabout)
	assert.Equal(t, 0.0, res.BackwardSpeedKmh)
}

func TestCarWayMaxspeed(t *testing.T) {
	car := NewCar()

	res, ok := car.Way(map[string]string{"highway": "motorway", "maxspeed": "70"})
	require.True(t, ok)
	assert.Equal(t, 70.0, res.ForwardSpeedKmh)

	res, ok = car.Way(map[string]string{"highway": "motorway", "maxspeed": "50 mph"})
	require.True(t, ok)
	assert.InDelta(t, 80.47, res.ForwardSpeedKmh, 0.01)

	// maxspeed above the class default never raises the speed.
	res, ok = car.Way(map[string]string{"highway": "residential", "maxspeed": "100"})
	require.True(t, ok)
	assert.Equal(t, 25.0, res.ForwardSpeedKmh)
}

func TestCarNode(t *testing.T) {
	car := NewCar()

	assert.True(t, car.Node(map[string]string{"barrier": "bollard"}).IsBarrier)
	assert.False(t, car.Node(map[string]string{"barrier": "gate"}).IsBarrier)
	assert.False(t, car.Node(map[string]string{"barrier": "bollard", "access": "yes"}).IsBarrier)
	assert.True(t, car.Node(map[string]string{"highway": "traffic_signals"}).IsSignal)
	assert.Equal(t, NodeResult{}, car.Node(map[string]string{}))
}

func TestCarTurnPenalty(t *testing.T) {
	car := NewCar()

	assert.Zero(t, car.TurnPenalty(180, ModeDriving, ModeDriving))
	assert.Zero(t, car.TurnPenalty(170, ModeDriving, ModeDriving))

	sharp := car.TurnPenalty(90, ModeDriving, ModeDriving)
	slight := car.TurnPenalty(150, ModeDriving, ModeDriving)
	assert.Greater(t, sharp, slight)

	assert.Zero(t, car.TurnPenalty(90, ModeFerry, ModeDriving))
}
