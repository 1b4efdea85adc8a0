package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/On-Jun9/phockup/pkg/types"
)

type Options struct {
	OutputDir     string
	Prefix        string
	Suffix        string
	NoDateDir     string
	DirFormat     string
	OriginalNames bool
	DryRun        bool
}

type Planner struct {
	outputDir     string
	prefix        string
	suffix        string
	noDateDir     string
	format        DirFormat
	originalNames bool
	dryRun        bool
}

func New(opts Options) *Planner {
	noDateDir := opts.NoDateDir
	if noDateDir == "" {
		noDateDir = "unknown"
	}
	dirFormat := opts.DirFormat
	if dirFormat == "" {
		dirFormat = "YYYY/MM/DD"
	}

	return &Planner{
		outputDir:     opts.OutputDir,
		prefix:        opts.Prefix,
		suffix:        opts.Suffix,
		noDateDir:     noDateDir,
		format:        ParseDirFormat(dirFormat),
		originalNames: opts.OriginalNames,
		dryRun:        opts.DryRun,
	}
}

// OutputDir returns {output}/{prefix}/{date path | unknown}/{suffix}, with empty
// segments dropped.
func (p *Planner) OutputDir(date *types.ResolvedDate) string {
	segment := p.noDateDir
	if date != nil {
		segment = p.format.Format(date.Timestamp)
	}
	return filepath.Join(p.outputDir, p.prefix, segment, p.suffix)
}

// UnknownDir is the directory files without a date are placed in.
func (p *Planner) UnknownDir() string {
	return p.OutputDir(nil)
}

// EnsureDir creates dir and its parents. Concurrent calls for the same directory are
// safe. Nothing is created in dry-run mode.
func (p *Planner) EnsureDir(dir string) error {
	if p.dryRun {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return nil
}

// FileName returns YYYYMMDD-HHMMSS[subseconds].ext in lower case, or the source base
// name when original names are kept or the date is unknown.
func (p *Planner) FileName(sourcePath string, date *types.ResolvedDate) string {
	base := filepath.Base(sourcePath)
	if p.originalNames || date == nil {
		return base
	}

	t := date.Timestamp
	name := fmt.Sprintf("%04d%02d%02d-%02d%02d%02d",
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
	name += date.Subseconds + filepath.Ext(base)

	return strings.ToLower(name)
}

// Plan computes the placement of sourcePath. Non-media files keep their name and go
// to the unknown directory.
func (p *Planner) Plan(sourcePath string, kind types.MediaKind, date *types.ResolvedDate) types.TargetPlan {
	if !kind.IsMedia() {
		date = nil
	}

	plan := types.TargetPlan{
		OutputDir: p.OutputDir(date),
		FileName:  p.FileName(sourcePath, date),
		Kind:      kind,
		Date:      date,
	}
	plan.FilePath = filepath.Join(plan.OutputDir, plan.FileName)
	return plan
}
