//go:build !gocv

package transform

// DefaultRotator returns the pure Go rotator
func DefaultRotator() Rotator {
	return NewBilinearRotator()
}
