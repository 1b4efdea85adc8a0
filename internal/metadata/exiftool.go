package metadata

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/On-Jun9/phockup/pkg/types"
	"github.com/barasher/go-exiftool"
)

var ErrExiftoolNotFound = errors.New("exiftool is not installed. Visit https://exiftool.org/")

// CheckExiftool resolves the exiftool binary, defaulting to "exiftool" on PATH.
func CheckExiftool(binary string) (string, error) {
	if binary == "" {
		binary = "exiftool"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w (%v)", ErrExiftoolNotFound, err)
	}
	return path, nil
}

// ExifTool extracts tags through a pool of stay-open exiftool processes, one per worker.
type ExifTool struct {
	pool  chan *exiftool.Exiftool
	procs []*exiftool.Exiftool
}

func NewExifTool(binary string, workers int) (*ExifTool, error) {
	path, err := CheckExiftool(binary)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	e := &ExifTool{pool: make(chan *exiftool.Exiftool, workers)}
	for i := 0; i < workers; i++ {
		et, err := exiftool.NewExiftool(exiftool.SetExiftoolBinaryPath(path))
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to start exiftool: %w", err)
		}
		e.procs = append(e.procs, et)
		e.pool <- et
	}
	return e, nil
}

func (e *ExifTool) Extract(ctx context.Context, path string) (types.Tags, error) {
	var et *exiftool.Exiftool
	select {
	case et = <-e.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { e.pool <- et }()

	infos := et.ExtractMetadata(path)
	if len(infos) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if infos[0].Err != nil {
		return nil, infos[0].Err
	}
	return types.Tags(infos[0].Fields), nil
}

func (e *ExifTool) Close() error {
	var errs []error
	for _, et := range e.procs {
		if err := et.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.procs = nil
	return errors.Join(errs...)
}
