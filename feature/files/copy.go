package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// partialSuffix marks a copy in progress.
const partialSuffix = ".partial"

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// CopyFile copies src to dst through dst.partial and gives dst the source's
// modification time. A dst that already has the size and modification time of
// src is left alone and copied is false.
func CopyFile(ctx context.Context, src, dst string) (copied bool, n int64, err error) {
	info, err := os.Stat(src)
	if err != nil {
		return false, 0, err
	}
	if !info.Mode().IsRegular() {
		return false, 0, fmt.Errorf("%s is not a regular file", src)
	}
	if existing, err := os.Stat(dst); err == nil && sameSignature(info, existing) {
		return false, 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return false, 0, err
	}
	defer in.Close()

	tmp := dst + partialSuffix
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return false, 0, err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	n, err = io.Copy(out, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		_ = out.Close()
		return false, n, err
	}
	if err = out.Sync(); err != nil {
		_ = out.Close()
		return false, n, err
	}
	if err = out.Close(); err != nil {
		return false, n, err
	}
	if err = os.Chtimes(tmp, time.Time{}, info.ModTime()); err != nil {
		return false, n, err
	}
	if err = os.Rename(tmp, dst); err != nil {
		return false, n, err
	}
	return true, n, nil
}

func sameSignature(a, b os.FileInfo) bool {
	if a.Size() != b.Size() {
		return false
	}
	d := a.ModTime().Sub(b.ModTime())
	return d < time.Second && d > -time.Second
}

// writeFileAtomic replaces path with data, keeping its permissions and
// modification time.
func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	cleanup := func() { _ = os.Remove(name) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(name, info.Mode().Perm()); err != nil {
		cleanup()
		return err
	}
	if err := os.Chtimes(name, time.Time{}, info.ModTime()); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// removeEmptyParents removes dir and its parents while they are empty,
// stopping at root.
func removeEmptyParents(dir, root string) {
	root = filepath.Clean(root)
	for {
		dir = filepath.Clean(dir)
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
