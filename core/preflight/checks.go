package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

const (
	// spaceBuffer is added to every estimate for journals and temporary copies.
	spaceBuffer uint64 = 500 * 1024 * 1024
	// spaceMarginPercent is added on top of the remaining bytes.
	spaceMarginPercent uint64 = 10
)

// freeSpace is replaced in tests.
var freeSpace = FreeBytes

// CheckDirectoryAccess verifies that path is a usable directory. A target that
// does not exist yet passes when its nearest existing parent is writable.
func CheckDirectoryAccess(name, path string, write bool) Result {
	mode := uint32(unix.R_OK | unix.X_OK)
	if write {
		mode |= unix.W_OK
	}

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
		}
		if !write {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		parent, perr := existingParent(path)
		if perr != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, perr)}
		}
		if err := unix.Access(parent, mode); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	if write {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckDiskSpace compares the bytes still to be copied from source to target
// with the free space of the target filesystem.
func CheckDiskSpace(source, target string) Result {
	const name = "Disk space"

	srcSize, err := DirSize(source)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("measure %s: %v", source, err)}
	}
	dstSize, err := DirSize(target)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("measure %s: %v", target, err)}
	}
	free, err := freeSpace(target)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("free space of %s: %v", target, err)}
	}

	need := RequiredBytes(srcSize, dstSize)
	detail := fmt.Sprintf("%s required, %s free", humanize.IBytes(need), humanize.IBytes(free))
	if free < need {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// RequiredBytes estimates the space a migration still needs: what the source
// holds beyond the existing target, plus a margin and a fixed buffer.
func RequiredBytes(sourceSize, targetSize uint64) uint64 {
	var remaining uint64
	if sourceSize > targetSize {
		remaining = sourceSize - targetSize
	}
	return remaining + remaining*spaceMarginPercent/100 + spaceBuffer
}

// DirSize sums the sizes of the regular files under root. A missing root
// has size zero.
func DirSize(root string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}

// FreeBytes reports the space available to unprivileged users on the
// filesystem holding path, or its nearest existing parent.
func FreeBytes(path string) (uint64, error) {
	dir, err := existingParent(path)
	if err != nil {
		return 0, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

func existingParent(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing parent of %s", path)
		}
		dir = parent
	}
}
