package utils

import "time"

// Now is the clock used by the pipeline. Components accept their own clock
// function and default to this one.
func Now() time.Time {
	return time.Now().UTC()
}
