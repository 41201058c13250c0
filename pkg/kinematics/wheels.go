package kinematics

import "fmt"

type Wheel int

// Wheels are always ordered front-left, front-right, rear-left, rear-right.
const (
	FrontLeft Wheel = iota
	FrontRight
	RearLeft
	RearRight

	NumWheels = 4
)

var wheelNames = [NumWheels]string{"front-left", "front-right", "rear-left", "rear-right"}

func (w Wheel) String() string {
	if w < 0 || w >= NumWheels {
		return fmt.Sprintf("wheel(%d)", int(w))
	}
	return wheelNames[w]
}

// AllWheels lists the wheels in output order.
var AllWheels = [NumWheels]Wheel{FrontLeft, FrontRight, RearLeft, RearRight}

// PerWheel holds one value per wheel, indexed by Wheel.
type PerWheel[T any] [NumWheels]T

// Uniform returns a PerWheel with every wheel set to v.
func Uniform[T any](v T) PerWheel[T] {
	return PerWheel[T]{v, v, v, v}
}

// Map returns a copy with f applied to every value.
func (p PerWheel[T]) Map(f func(T) T) PerWheel[T] {
	var out PerWheel[T]
	for i, v := range p {
		out[i] = f(v)
	}
	return out
}

// Left and Right return the front and rear values on one side.
func (p PerWheel[T]) Left() (front, rear T) {
	return p[FrontLeft], p[RearLeft]
}

func (p PerWheel[T]) Right() (front, rear T) {
	return p[FrontRight], p[RearRight]
}
