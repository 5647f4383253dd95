package wheel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegrees_Radians(t *testing.T) {
	g := NewGeometry(0)
	assert.InDelta(t, 180, g.Degrees(math.Pi), 1e-4)
	assert.InDelta(t, -90, g.Degrees(-math.Pi/2), 1e-4)
	// unwrapped: two full turns stay at 720
	assert.InDelta(t, 720, g.Degrees(4*math.Pi), 1e-3)
}

func TestDegrees_EncoderTicks(t *testing.T) {
	g := NewGeometry(1024)
	assert.InDelta(t, 90, g.Degrees(256), 1e-4)
}

func TestDegrees_Monotonic(t *testing.T) {
	g := NewGeometry(0)
	prev := g.Degrees(-10)
	for raw := float32(-9.5); raw <= 10; raw += 0.5 {
		d := g.Degrees(raw)
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestDegrees_ZeroValueGeometry(t *testing.T) {
	var g Geometry
	assert.InDelta(t, 360, g.Degrees(2*math.Pi), 1e-3)
}
