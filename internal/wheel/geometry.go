// Package wheel converts the rotary encoder signal into a canonical angle.
package wheel

import "math"

// DefaultUnitsPerRevolution matches recordings whose wheel channel holds
// cumulative rotation in radians.
const DefaultUnitsPerRevolution = 2 * math.Pi

// Geometry maps raw encoder units to unwrapped cumulative degrees. The mapping
// is linear and monotonic so wheel positions can be interpolated between the
// stimulus-on and feedback angles of a trial.
type Geometry struct {
	UnitsPerRevolution float64
}

// NewGeometry returns a Geometry, falling back to DefaultUnitsPerRevolution
// when unitsPerRev is not positive.
func NewGeometry(unitsPerRev float64) Geometry {
	if unitsPerRev <= 0 {
		unitsPerRev = DefaultUnitsPerRevolution
	}
	return Geometry{UnitsPerRevolution: unitsPerRev}
}

// Degrees converts a raw encoder reading to degrees.
func (g Geometry) Degrees(raw float32) float32 {
	upr := g.UnitsPerRevolution
	if upr <= 0 {
		upr = DefaultUnitsPerRevolution
	}
	return float32(float64(raw) * 360 / upr)
}
