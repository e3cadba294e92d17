package flow

import "time"

// Shared polling parameters for require.Eventually across the test suite.
const (
	secondsTimeout = 2 * time.Second
	pollInterval   = time.Millisecond
)
