package copier

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/On-Jun9/phockup/internal/verify"
	"github.com/On-Jun9/phockup/pkg/types"
)

// ErrSourceVanished reports a source that disappeared between discovery and transfer.
var ErrSourceVanished = errors.New("no such file or directory")

// ErrTargetExists reports a target path that was taken before the file could be placed.
// Nothing is ever written over an existing target.
var ErrTargetExists = errors.New("target already exists")

// Transferer places files at their planned targets by copy, move or hardlink.
// The target directory must already exist.
type Transferer struct {
	mode     types.TransferMode
	dryRun   bool
	verifier *verify.Verifier
	// linkFile creates a new name for an existing file and fails if the new name exists.
	linkFile func(oldname, newname string) error
}

// New returns a Transferer. verifier may be nil to skip post-copy verification.
func New(mode types.TransferMode, dryRun bool, verifier *verify.Verifier) *Transferer {
	if mode == "" {
		mode = types.TransferCopy
	}
	return &Transferer{
		mode:     mode,
		dryRun:   dryRun,
		verifier: verifier,
		linkFile: os.Link,
	}
}

func (t *Transferer) Mode() types.TransferMode {
	return t.mode
}

// Transfer places src at dst. An occupied dst yields ErrTargetExists and is left untouched.
func (t *Transferer) Transfer(src, dst string) error {
	if t.dryRun {
		return nil
	}

	info, err := os.Lstat(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", src, ErrSourceVanished)
	}
	if err != nil {
		return err
	}

	switch t.mode {
	case types.TransferMove:
		return t.move(src, dst, info)
	case types.TransferLink:
		if err := t.linkFile(src, dst); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%s: %w", dst, ErrTargetExists)
			}
			return t.vanished(src, fmt.Errorf("hardlink failed: %w", err))
		}
		return nil
	default:
		return t.copy(src, dst, info)
	}
}

// Remove deletes the source of a duplicate. It is a no-op in dry-run.
func (t *Transferer) Remove(src string) error {
	if t.dryRun {
		return nil
	}
	if err := os.Remove(src); err != nil {
		return t.vanished(src, err)
	}
	return nil
}

// move links src to dst and drops src. Filesystems without hard links fall back to a
// checked rename, other devices to copy and remove.
func (t *Transferer) move(src, dst string, info os.FileInfo) error {
	err := t.linkFile(src, dst)
	if err == nil {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("linked to %s but failed to remove source: %w", dst, err)
		}
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", dst, ErrTargetExists)
	}

	if !errors.Is(err, syscall.EXDEV) {
		if _, statErr := os.Lstat(src); errors.Is(statErr, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, ErrSourceVanished)
		}
		if _, statErr := os.Lstat(dst); statErr == nil {
			return fmt.Errorf("%s: %w", dst, ErrTargetExists)
		}
		err = os.Rename(src, dst)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EXDEV) {
			return t.vanished(src, err)
		}
	}

	// Different filesystems: copy, then drop the source.
	if err := t.copy(src, dst, info); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return nil
}

// copy writes src to a private temp file next to dst, verifies it and then places it.
func (t *Transferer) copy(src, dst string, info os.FileInfo) error {
	partPath, err := atomicCopy(src, dst, info)
	if err != nil {
		return t.vanished(src, err)
	}
	defer os.Remove(partPath)

	if t.verifier != nil {
		if err := t.verifier.Verify(src, partPath); err != nil {
			return err
		}
	}
	return t.place(partPath, dst)
}

// place gives partPath the name dst without replacing an existing dst.
func (t *Transferer) place(partPath, dst string) error {
	err := t.linkFile(partPath, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", dst, ErrTargetExists)
	}

	// No hard links on this filesystem.
	if _, statErr := os.Lstat(dst); statErr == nil {
		return fmt.Errorf("%s: %w", dst, ErrTargetExists)
	}
	return os.Rename(partPath, dst)
}

// vanished maps a not-exist error on src to ErrSourceVanished.
func (t *Transferer) vanished(src string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		if _, statErr := os.Lstat(src); errors.Is(statErr, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, ErrSourceVanished)
		}
	}
	return err
}

// atomicCopy copies src into a new ".part" file in the directory of dst, with the mode and
// modification time of src, and returns its path. The part file is removed on failure.
func atomicCopy(src, dst string, info os.FileInfo) (partPath string, err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer srcFile.Close()

	dstFile, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return "", err
	}
	partPath = dstFile.Name()
	defer func() {
		if err != nil {
			os.Remove(partPath)
			partPath = ""
		}
	}()

	_, err = io.Copy(dstFile, srcFile)
	if closeErr := dstFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return partPath, err
	}

	if err = os.Chmod(partPath, info.Mode().Perm()); err != nil {
		return partPath, fmt.Errorf("failed to preserve permissions: %w", err)
	}
	if err = os.Chtimes(partPath, info.ModTime(), info.ModTime()); err != nil {
		return partPath, fmt.Errorf("failed to preserve modification time: %w", err)
	}

	return partPath, nil
}
