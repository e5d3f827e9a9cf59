//go:build !linux

package clock

import (
	"fmt"
	"time"
)

func isPrivileged() bool {
	return false
}

func setSystemClock(t time.Time) error {
	return fmt.Errorf("setting the system clock is not supported on this platform")
}
