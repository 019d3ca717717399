//go:build !linux

package files

import "time"

func fileTimes(path string) (time.Time, time.Time, error) {
	return statTimes(path)
}
