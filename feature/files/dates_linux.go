//go:build linux

package files

import (
	"errors"
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

func fileTimes(path string) (time.Time, time.Time, error) {
	var stx unix.Statx_t
	mask := unix.STATX_BTIME | unix.STATX_MTIME | unix.STATX_CTIME
	if err := unix.Statx(unix.AT_FDCWD, path, 0, mask, &stx); err != nil {
		if errors.Is(err, unix.ENOSYS) {
			return statTimes(path)
		}
		return time.Time{}, time.Time{}, &fs.PathError{Op: "statx", Path: path, Err: err}
	}

	modified := statxTime(stx.Mtime)
	created := statxTime(stx.Ctime)
	if stx.Mask&unix.STATX_BTIME != 0 {
		created = statxTime(stx.Btime)
	}
	return created, modified, nil
}

func statxTime(ts unix.StatxTimestamp) time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec)).UTC()
}
