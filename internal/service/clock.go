package service

import (
	"time"

	"zkvault/internal/core/ports"
)

// SystemClock reads the host wall clock.
type SystemClock struct{}

var _ ports.Clock = SystemClock{}

// Now returns the current unix time in seconds.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}
