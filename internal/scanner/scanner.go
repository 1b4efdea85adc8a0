package scanner

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// SidecarExt files are never primary files; they travel with the file they describe.
const SidecarExt = ".xmp"

var ignoredFiles = map[string]bool{
	".DS_Store": true,
	"Thumbs.db": true,
}

// IsIgnored reports whether name is an OS artifact that is never processed.
func IsIgnored(name string) bool {
	return ignoredFiles[name]
}

// IsSidecar reports whether name has the sidecar extension, in any case.
func IsSidecar(name string) bool {
	return strings.EqualFold(filepath.Ext(name), SidecarExt)
}

// StopDepth returns the separator count at which directories stop being descended.
// A negative maxDepth means no limit.
func StopDepth(root string, maxDepth int) int {
	if maxDepth < 0 {
		return math.MaxInt
	}
	return strings.Count(root, string(os.PathSeparator)) + maxDepth
}

// DirFunc receives one directory and its primary files in name order.
// Returning an error stops the walk.
type DirFunc func(ctx context.Context, dir string, files []string) error

// ErrFunc receives errors that do not stop the walk.
type ErrFunc func(path string, err error)

// Walker visits the input tree pre-order, sorted by name, down to a depth limit.
type Walker struct {
	root      string
	stopDepth int
	onErr     ErrFunc
}

func New(root string, maxDepth int, onErr ErrFunc) *Walker {
	if onErr == nil {
		onErr = func(string, error) {}
	}
	return &Walker{
		root:      root,
		stopDepth: StopDepth(root, maxDepth),
		onErr:     onErr,
	}
}

func (w *Walker) Root() string {
	return w.root
}

// Walk calls fn for every directory holding at least one primary file. An unreadable
// root is returned; an unreadable subdirectory is reported to onErr and skipped.
func (w *Walker) Walk(ctx context.Context, fn DirFunc) error {
	files, subdirs, err := w.readDir(w.root)
	if err != nil {
		return err
	}
	return w.visit(ctx, w.root, files, subdirs, fn)
}

func (w *Walker) visit(ctx context.Context, dir string, files, subdirs []string, fn DirFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(files) > 0 {
		if err := fn(ctx, dir, files); err != nil {
			return err
		}
	}

	if !w.descends(dir) {
		return nil
	}

	for _, sub := range subdirs {
		if err := ctx.Err(); err != nil {
			return err
		}

		subFiles, subSubdirs, err := w.readDir(sub)
		if err != nil {
			w.onErr(sub, err)
			continue
		}
		if err := w.visit(ctx, sub, subFiles, subSubdirs, fn); err != nil {
			return err
		}
	}

	return nil
}

func (w *Walker) descends(dir string) bool {
	return strings.Count(dir, string(os.PathSeparator)) < w.stopDepth
}

// readDir splits a directory into primary files and subdirectories, both sorted.
// Symlinks to files count as files; symlinks to directories are not followed.
func (w *Walker) readDir(dir string) (files, subdirs []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())

		switch {
		case e.IsDir():
			subdirs = append(subdirs, path)
			continue
		case e.Type()&os.ModeSymlink != 0:
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				continue
			}
		case !e.Type().IsRegular():
			continue
		}

		if IsIgnored(e.Name()) || IsSidecar(e.Name()) {
			continue
		}
		files = append(files, path)
	}

	return files, subdirs, nil
}

// RemoveEmptyDirs removes subdirectories of the root bottom-up within the depth limit.
// The root itself is kept. Each removal goes to onRemoved; each failure, such as a
// directory that is not empty, goes to the walker's ErrFunc.
func (w *Walker) RemoveEmptyDirs(ctx context.Context, onRemoved func(dir string)) error {
	if onRemoved == nil {
		onRemoved = func(string) {}
	}
	return w.removeEmpty(ctx, w.root, onRemoved)
}

func (w *Walker) removeEmpty(ctx context.Context, dir string, onRemoved func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.descends(dir) {
		_, subdirs, err := w.readDir(dir)
		if err != nil {
			w.onErr(dir, err)
			return nil
		}
		for _, sub := range subdirs {
			if err := w.removeEmpty(ctx, sub, onRemoved); err != nil {
				return err
			}
		}
	}

	if dir == w.root {
		return nil
	}

	if err := os.Remove(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.onErr(dir, err)
		}
		return nil
	}
	onRemoved(dir)
	return nil
}
