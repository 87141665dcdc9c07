package core

import "stepbus/x/mathx"

// AccelRates holds the acceleration rate in units/s² for each acceleration
// code. Code 0 disables ramping.
var AccelRates = [8]uint32{0, 8000, 16000, 24000, 32000, 40000, 50000, 60000}

// Speeds are bucketed for the table; lookups use the top edge of the bucket
// so the distance is never underestimated.
const (
	distBucketShift = 5
	distBuckets     = 65536 >> distBucketShift
)

// DistanceTable gives the distance needed to decelerate from a speed down to
// the floor speed, indexed by acceleration code and speed. It is filled once
// and read-only afterwards, so it can be shared between motors and read from
// any context.
type DistanceTable struct {
	floor uint16
	dist  [len(AccelRates)][distBuckets]uint16
}

// NewDistanceTable computes the table for a floor speed. The floor must not
// exceed the Floor setting of any motor using the table; 0 is always safe.
func NewDistanceTable(floor uint16) *DistanceTable {
	t := &DistanceTable{floor: floor}
	f2 := uint64(floor) * uint64(floor)
	for code := 1; code < len(AccelRates); code++ {
		twoA := 2 * uint64(AccelRates[code])
		for i := 0; i < distBuckets; i++ {
			top := uint64(i+1)<<distBucketShift - 1
			var d uint64
			if top*top > f2 {
				d = mathx.CeilDiv(top*top-f2, twoA)
			}
			t.dist[code][i] = mathx.SatU16(d)
		}
	}
	return t
}

// Floor returns the floor speed the table was computed for
func (t *DistanceTable) Floor() uint16 {
	return t.floor
}

// CalcDist returns the deceleration distance for the acceleration code at
// speed, rounded up and saturated at 0xFFFF. Code 0 has no ramp and needs no
// distance.
func (t *DistanceTable) CalcDist(code uint8, speed uint16) uint16 {
	if code == 0 || int(code) >= len(AccelRates) {
		return 0
	}
	return t.dist[code][speed>>distBucketShift]
}
