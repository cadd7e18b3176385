package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Add(t *testing.T) {
	a := Point{X: 1, Y: 2, Z: 3}
	b := Point{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Point{X: 5, Y: 7, Z: 9}, a.Add(b))
	assert.Equal(t, Point{X: -3, Y: -3, Z: -3}, a.Sub(b))
}

func TestPoint_Axes(t *testing.T) {
	p := FromAxes([3]float64{1.5, -2, 0})
	assert.Equal(t, Point{X: 1.5, Y: -2}, p)
	assert.Equal(t, [3]float64{1.5, -2, 0}, p.Axes())
	assert.True(t, p.Equal(Point{X: 1.5, Y: -2}))
}

func TestPoint_String(t *testing.T) {
	assert.Equal(t, "0.000,0.000,0.000", Point{}.String())
	assert.Equal(t, "10.500,-2.000,0.125", Point{X: 10.5, Y: -2, Z: 0.125}.String())
}
