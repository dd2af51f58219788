// Package fsutil copies directory trees for tuneup's backups.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// CopyStats summarises a tree copy.
type CopyStats struct {
	Dirs    int64
	Files   int64
	Links   int64
	Bytes   int64
	Skipped int64

	// Errors holds per-entry failures. The copy continues past them.
	Errors []error
}

type copyState struct {
	dirs, files, links, bytes, skipped atomic.Int64

	errMu sync.Mutex
	errs  []error
}

func (s *copyState) addError(path string, err error) {
	s.errMu.Lock()
	s.errs = append(s.errs, fmt.Errorf("%s: %w", path, err))
	s.errMu.Unlock()
}

func (s *copyState) stats() CopyStats {
	return CopyStats{
		Dirs:    s.dirs.Load(),
		Files:   s.files.Load(),
		Links:   s.links.Load(),
		Bytes:   s.bytes.Load(),
		Skipped: s.skipped.Load(),
		Errors:  s.errs,
	}
}

// CopyTree copies the directory src to dst, which must not exist.
// Symlinks are recreated, not followed. Sockets, pipes and devices are
// skipped. Unreadable entries are recorded in CopyStats.Errors.
func CopyTree(ctx context.Context, src, dst string) (CopyStats, error) {
	info, err := os.Stat(src)
	if err != nil {
		return CopyStats{}, fmt.Errorf("reading source: %w", err)
	}
	if !info.IsDir() {
		return CopyStats{}, fmt.Errorf("source %s is not a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return CopyStats{}, fmt.Errorf("creating destination parent: %w", err)
	}
	if err := os.Mkdir(dst, info.Mode().Perm()|0o700); err != nil {
		return CopyStats{}, fmt.Errorf("creating destination: %w", err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()|0o700); err != nil {
		return CopyStats{}, fmt.Errorf("setting destination mode: %w", err)
	}

	state := &copyState{}
	conf := fastwalk.Config{
		Follow: false,
	}

	walkErr := fastwalk.Walk(&conf, src, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			state.addError(path, err)
			return nil
		}

		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			state.addError(path, relErr)
			return nil
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		if copyErr := copyEntry(path, target, d, state); copyErr != nil {
			state.addError(path, copyErr)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})

	stats := state.stats()
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return stats, walkErr
		}
		return stats, fmt.Errorf("walking %s: %w", src, walkErr)
	}
	return stats, nil
}

func copyEntry(path, target string, d fs.DirEntry, state *copyState) error {
	switch {
	case d.IsDir():
		info, err := d.Info()
		if err != nil {
			return err
		}
		// Children may be visited from other goroutines. A file copy may
		// already have created this directory with 0755, so set the mode
		// explicitly rather than relying on MkdirAll.
		perm := info.Mode().Perm() | 0o700
		if err := os.MkdirAll(target, perm); err != nil {
			return err
		}
		if err := os.Chmod(target, perm); err != nil {
			return err
		}
		state.dirs.Add(1)

	case d.Type()&fs.ModeSymlink != 0:
		link, err := os.Readlink(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.Symlink(link, target); err != nil {
			return err
		}
		state.links.Add(1)

	case d.Type().IsRegular():
		n, err := copyFile(path, target)
		if err != nil {
			return err
		}
		state.files.Add(1)
		state.bytes.Add(n)

	default:
		state.skipped.Add(1)
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// CopyFile copies a single regular file, creating dst's parent directory.
func CopyFile(src, dst string) (int64, error) {
	n, err := copyFile(src, dst)
	if err != nil {
		return n, fmt.Errorf("copying %s: %w", src, err)
	}
	return n, nil
}

// ReplaceTree copies src into a staging directory under tmpDir and then
// renames it to dst, replacing any previous copy. A failed copy leaves dst
// untouched.
func ReplaceTree(ctx context.Context, src, dst, tmpDir string) (CopyStats, error) {
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return CopyStats{}, fmt.Errorf("creating staging directory: %w", err)
	}

	stageParent, err := os.MkdirTemp(tmpDir, filepath.Base(dst)+"-")
	if err != nil {
		return CopyStats{}, fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(stageParent) }()

	staged := filepath.Join(stageParent, filepath.Base(dst))
	stats, err := CopyTree(ctx, src, staged)
	if err != nil {
		return stats, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return stats, fmt.Errorf("creating destination parent: %w", err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return stats, fmt.Errorf("removing previous copy: %w", err)
	}
	if err := os.Rename(staged, dst); err != nil {
		return stats, fmt.Errorf("moving copy into place: %w", err)
	}

	return stats, nil
}
