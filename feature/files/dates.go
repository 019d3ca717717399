package files

import (
	"os"
	"time"
)

// Dates reads and sets file timestamps on the local filesystem. It satisfies
// dbupdate.FileDates.
type Dates struct{}

// Times returns the creation and modification time of path. Where the
// filesystem does not record a creation time the change time is used.
func (Dates) Times(path string) (created, modified time.Time, err error) {
	return fileTimes(path)
}

// SetModified sets the modification time of path and leaves the access time.
func (Dates) SetModified(path string, t time.Time) error {
	return os.Chtimes(path, time.Time{}, t)
}
