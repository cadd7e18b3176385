package coord

import (
	"strconv"
)

// Point is a 3-axis position as reported by the controller, in controller units.
type Point struct{ X, Y, Z float64 }

// FromAxes builds a Point from an X,Y,Z triple.
func FromAxes(a [3]float64) Point { return Point{X: a[0], Y: a[1], Z: a[2]} }

// Axes returns p as an X,Y,Z triple.
func (p Point) Axes() [3]float64 { return [3]float64{p.X, p.Y, p.Z} }

func (p Point) Equal(b Point) bool {
	return p.X == b.X && p.Y == b.Y && p.Z == b.Z
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	p.Z += target.Z
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	p.Z -= target.Z
	return p
}

// String formats p the way Grbl reports it: "x,y,z" with 3 decimals.
func (p Point) String() string {
	b := make([]byte, 0, 32)
	b = strconv.AppendFloat(b, p.X, 'f', 3, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, p.Y, 'f', 3, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, p.Z, 'f', 3, 64)
	return string(b)
}
