package files

import (
	"os"
	"time"
)

// statTimes falls back to the modification time for both values.
func statTimes(path string) (time.Time, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return info.ModTime().UTC(), info.ModTime().UTC(), nil
}
