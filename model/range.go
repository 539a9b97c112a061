package model

import "fmt"

// Range is an inclusive version range.
type Range struct {
	Min uint8
	Max uint8
}

// Includes returns a bool indicating whether the supplied
// value is included in the range.
func (r Range) Includes(v uint8) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}
