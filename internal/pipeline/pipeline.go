package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/On-Jun9/phockup/internal/config"
	"github.com/On-Jun9/phockup/internal/copier"
	"github.com/On-Jun9/phockup/internal/date"
	"github.com/On-Jun9/phockup/internal/log"
	"github.com/On-Jun9/phockup/internal/metadata"
	"github.com/On-Jun9/phockup/internal/planner"
	"github.com/On-Jun9/phockup/internal/policy"
	"github.com/On-Jun9/phockup/internal/scanner"
	"github.com/On-Jun9/phockup/internal/verify"
	"github.com/On-Jun9/phockup/pkg/types"
)

// SetupError is a fatal problem with the input or output directory.
type SetupError struct {
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

type Pipeline struct {
	cfg              *config.Config
	meta             metadata.Extractor
	logger           *log.Logger
	resolver         *date.Resolver
	planner          *planner.Planner
	dups             *policy.DuplicateResolver
	transfer         *copier.Transferer
	walker           *scanner.Walker
	stats            *Stats
	progressCallback ProgressCallback
	order            int
}

// New wires a pipeline for a validated configuration. The caller owns meta and logger.
func New(cfg *config.Config, meta metadata.Extractor, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Nop()
	}

	var re *regexp.Regexp
	if cfg.DateRegex != "" {
		var err error
		re, err = regexp.Compile(cfg.DateRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid date regex: %w", err)
		}
	}

	var verifier *verify.Verifier
	if cfg.Verify {
		verifier = verify.New(true)
	}

	p := &Pipeline{
		cfg:    cfg,
		meta:   meta,
		logger: logger,
		resolver: date.NewResolver(date.Options{
			Fields:      cfg.DateFields,
			TimezoneTag: cfg.TimezoneTag,
			Regex:       re,
			Timestamp:   cfg.Timestamp,
		}),
		planner: planner.New(planner.Options{
			OutputDir:     cfg.OutputDir,
			Prefix:        cfg.OutputPrefix,
			Suffix:        cfg.OutputSuffix,
			NoDateDir:     cfg.NoDateDir,
			DirFormat:     cfg.DirFormat,
			OriginalNames: cfg.OriginalNames,
			DryRun:        cfg.DryRun,
		}),
		dups:     policy.NewDuplicateResolver(cfg.Move, cfg.SkipUnknown, cfg.DeleteDups),
		transfer: copier.New(cfg.Mode(), cfg.DryRun, verifier),
		stats:    &Stats{},
	}
	p.walker = scanner.New(cfg.InputDir, cfg.MaxDepth, func(path string, err error) {
		logger.Error("Cannot read "+path, err)
	})

	return p, nil
}

func (p *Pipeline) SetProgressCallback(cb ProgressCallback) {
	p.progressCallback = cb
}

// Run organizes the input tree. On interruption it returns the partial summary
// together with the context error.
func (p *Pipeline) Run(ctx context.Context) (*types.RunSummary, error) {
	startTime := time.Now()

	if err := p.checkDirectories(); err != nil {
		return nil, err
	}

	if !p.cfg.DryRun {
		unlock, err := acquireLock(p.cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	if p.cfg.DryRun {
		p.logger.Warn("Dry-run phockup (does a trial run with no permanent changes)...")
	}
	if p.cfg.Concurrency > 1 {
		p.logger.Warn(fmt.Sprintf("Using %d workers to process files.", p.cfg.Concurrency))
	}

	p.notify(ProgressUpdate{Type: ProgressStatus, Message: "Scanning " + p.cfg.InputDir})

	err := p.walker.Walk(ctx, p.dispatch)
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)

	if err == nil && p.cfg.Move && p.cfg.RemoveEmptyDirs && !p.cfg.DryRun {
		err = p.walker.RemoveEmptyDirs(ctx, func(dir string) {
			p.logger.Info("Deleted empty directory " + dir)
		})
		interrupted = errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}

	summary := p.stats.Summary()
	summary.StartTime = startTime
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(startTime)
	summary.DryRun = p.cfg.DryRun
	summary.Interrupted = interrupted

	p.logger.Summary(summary)
	p.notify(ProgressUpdate{Type: ProgressComplete, Summary: &summary})

	return &summary, err
}

// checkDirectories validates the input directory and creates the output directory.
func (p *Pipeline) checkDirectories() error {
	info, err := os.Stat(p.cfg.InputDir)
	if err != nil {
		return &SetupError{
			Path: p.cfg.InputDir,
			Err:  fmt.Errorf("Input directory '%s' does not exist or cannot be accessed: %w", p.cfg.InputDir, err),
		}
	}
	if !info.IsDir() {
		return &SetupError{
			Path: p.cfg.InputDir,
			Err:  fmt.Errorf("Input directory '%s' is not a directory", p.cfg.InputDir),
		}
	}

	info, err = os.Stat(p.cfg.OutputDir)
	if err == nil {
		if !info.IsDir() {
			return &SetupError{
				Path: p.cfg.OutputDir,
				Err:  fmt.Errorf("Output '%s' is not a directory", p.cfg.OutputDir),
			}
		}
		return nil
	}

	p.logger.Warn(fmt.Sprintf("Output directory '%s' does not exist, creating now", p.cfg.OutputDir))
	if p.cfg.DryRun {
		return nil
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return &SetupError{
			Path: p.cfg.OutputDir,
			Err:  fmt.Errorf("Cannot create output '%s' directory. No write access!", p.cfg.OutputDir),
		}
	}
	return nil
}

// fileJob carries one file through the stages of a directory batch.
type fileJob struct {
	task types.FileTask
	plan types.TargetPlan
	// settled is set once the file needs no placement (filtered, skipped or failed).
	settled *types.FileOutcome
	unknown bool
	res     types.Resolution
}

// maxPlaceAttempts bounds re-resolution when a target is taken between claim and write.
const maxPlaceAttempts = 10

// dispatch processes one directory's files in three stages: metadata and planning on
// the pool, duplicate resolution in walk order on the calling goroutine, then transfers
// on the pool. Target names therefore do not depend on the number of workers. After an
// interrupt, files already started are finished and the rest are left alone.
func (p *Pipeline) dispatch(ctx context.Context, dir string, files []string) error {
	jobs := make([]fileJob, len(files))
	for i, f := range files {
		jobs[i].task = types.FileTask{SourcePath: f, Order: p.order}
		p.order++
	}

	detached := context.WithoutCancel(ctx)
	started := p.forEach(ctx, len(jobs), func(i int) {
		p.inspect(detached, &jobs[i])
	})
	jobs = jobs[:started]

	for i := range jobs {
		p.claim(&jobs[i])
	}

	p.forEach(detached, len(jobs), func(i int) {
		if !jobs[i].deferred() {
			p.processFile(jobs[i].task, p.execute(&jobs[i]))
		}
	})

	// Duplicates of files written in this batch are removed only once the batch is done.
	for i := range jobs {
		if jobs[i].deferred() {
			p.processFile(jobs[i].task, p.deletePending(&jobs[i]))
		}
	}

	if started < len(files) {
		return ctx.Err()
	}
	return nil
}

// forEach calls fn for 0..n-1 in order, on a bounded pool when concurrency allows. It stops
// starting calls once ctx is done, waits for the started ones and returns how many started.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(i int)) int {
	if p.cfg.Concurrency <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return i
			}
			fn(i)
		}
		return n
	}

	workers := p.cfg.Concurrency
	if workers > n {
		workers = n
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				fn(i)
			}
		}()
	}

	started := 0
feed:
	for i := 0; i < n; i++ {
		select {
		case indexes <- i:
			started++
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)

	// In-flight files always finish.
	wg.Wait()
	return started
}

// processFile records the final outcome of one file.
func (p *Pipeline) processFile(task types.FileTask, outcome types.FileOutcome) {
	outcome.Task = task
	outcome.DryRun = p.cfg.DryRun

	p.stats.Record(outcome)
	p.logger.LogOutcome(outcome)
	p.notify(ProgressUpdate{
		Type:     ProgressFile,
		Current:  int(p.stats.Processed()),
		Filename: task.SourcePath,
		Outcome:  outcome.Outcome,
	})
}

// inspect reads the metadata of a file, plans its target and applies the filters.
func (p *Pipeline) inspect(ctx context.Context, job *fileJob) {
	src := job.task.SourcePath

	tags, err := p.meta.Extract(ctx, src)
	if err != nil {
		p.logger.Debug(fmt.Sprintf("No metadata for %s: %v", src, err))
		tags = nil
	}

	kind := metadata.KindFromTags(tags)
	var resolved *types.ResolvedDate
	if kind.IsMedia() {
		resolved = p.resolver.Resolve(src, tags)
	}
	job.plan = p.planner.Plan(src, kind, resolved)
	job.unknown = job.plan.Date == nil

	if want := p.cfg.FileKind(); want != "" && kind != want {
		job.settle(types.FileOutcome{Outcome: types.OutcomeFiltered, Reason: fmt.Sprintf("not a %s file", want)})
		return
	}
	if job.unknown && p.cfg.SkipUnknown {
		job.settle(types.FileOutcome{Outcome: types.OutcomeUnknown, Reason: "unknown date", UnknownDate: true})
		return
	}
	if !job.unknown && !p.shouldIncludeByDate(job.plan.Date) {
		job.settle(types.FileOutcome{Outcome: types.OutcomeFiltered, Reason: "date outside range"})
	}
}

// claim resolves the target of a planned file. Calls must happen in walk order.
func (p *Pipeline) claim(job *fileJob) {
	if job.settled != nil {
		return
	}
	res, err := p.dups.Resolve(job.task.SourcePath, job.plan.FilePath)
	if err != nil {
		outcome := p.failure(job.task.SourcePath, err)
		outcome.UnknownDate = job.unknown
		job.settle(outcome)
		return
	}
	job.res = res
}

func (j *fileJob) settle(o types.FileOutcome) {
	j.settled = &o
}

// deferred reports a duplicate to delete whose twin is placed in the same batch.
func (j *fileJob) deferred() bool {
	return j.settled == nil && j.res.Action == types.ActionDeleteDuplicate && j.res.Pending
}

// execute carries out the resolution of a claimed file.
func (p *Pipeline) execute(job *fileJob) types.FileOutcome {
	if job.settled != nil {
		return *job.settled
	}
	outcome := p.place(job.task.SourcePath, job.plan, job.res)
	outcome.UnknownDate = job.unknown
	return outcome
}

// place transfers src and its sidecars to the resolved target. A target taken in the
// meantime sends the file back through duplicate resolution.
func (p *Pipeline) place(src string, plan types.TargetPlan, res types.Resolution) types.FileOutcome {
	if err := p.planner.EnsureDir(plan.OutputDir); err != nil {
		p.dups.Release(src, res.TargetPath)
		return failed(fmt.Errorf("cannot create %s: %w", plan.OutputDir, err))
	}

	for attempt := 1; ; attempt++ {
		switch res.Action {
		case types.ActionSkipDuplicate:
			return types.FileOutcome{Outcome: types.OutcomeDuplicate, Target: res.TargetPath}
		case types.ActionDeleteDuplicate:
			if err := p.transfer.Remove(src); err != nil {
				return p.failure(src, err)
			}
			return types.FileOutcome{Outcome: types.OutcomeDeleted, Target: res.TargetPath}
		}

		err := p.transfer.Transfer(src, res.TargetPath)
		if err == nil {
			break
		}
		if !errors.Is(err, copier.ErrTargetExists) || attempt >= maxPlaceAttempts {
			p.dups.Release(src, res.TargetPath)
			return p.failure(src, err)
		}

		p.logger.Debug(fmt.Sprintf("%s was taken, resolving again", res.TargetPath))
		res, err = p.dups.Resolve(src, plan.FilePath)
		if err != nil {
			return p.failure(src, err)
		}
	}

	for _, r := range p.transfer.TransferSidecars(src, plan.OutputDir, plan.FileName, res.Suffix) {
		p.logger.Sidecar(r.Source, r.Target, r.Err)
	}

	return types.FileOutcome{Outcome: transferOutcome(p.transfer.Mode()), Target: res.TargetPath}
}

// deletePending removes a source whose identical twin was placed earlier in the same
// batch. The source is kept if the twin did not make it to disk.
func (p *Pipeline) deletePending(job *fileJob) types.FileOutcome {
	src, target := job.task.SourcePath, job.res.TargetPath

	if !p.cfg.DryRun {
		same, err := policy.SameContent(src, target)
		if err != nil || !same {
			if _, statErr := os.Lstat(src); errors.Is(statErr, os.ErrNotExist) {
				return types.FileOutcome{Outcome: types.OutcomeVanished, Error: err, UnknownDate: job.unknown}
			}
			return types.FileOutcome{Outcome: types.OutcomeDuplicate, Target: target, UnknownDate: job.unknown}
		}
	}

	if err := p.transfer.Remove(src); err != nil {
		outcome := p.failure(src, err)
		outcome.UnknownDate = job.unknown
		return outcome
	}
	return types.FileOutcome{Outcome: types.OutcomeDeleted, Target: target, UnknownDate: job.unknown}
}

// failure classifies a per-file error, telling a vanished source apart.
func (p *Pipeline) failure(src string, err error) types.FileOutcome {
	if errors.Is(err, copier.ErrSourceVanished) {
		return types.FileOutcome{Outcome: types.OutcomeVanished, Error: err}
	}
	if _, statErr := os.Lstat(src); errors.Is(statErr, os.ErrNotExist) {
		return types.FileOutcome{Outcome: types.OutcomeVanished, Error: err}
	}
	return failed(err)
}

func failed(err error) types.FileOutcome {
	return types.FileOutcome{Outcome: types.OutcomeFailed, Error: err}
}

func transferOutcome(mode types.TransferMode) types.Outcome {
	switch mode {
	case types.TransferMove:
		return types.OutcomeMoved
	case types.TransferLink:
		return types.OutcomeLinked
	default:
		return types.OutcomeCopied
	}
}

// shouldIncludeByDate checks the inclusive from/to bounds against the calendar date
// (YYYY-MM-DD) of a known date.
func (p *Pipeline) shouldIncludeByDate(d *types.ResolvedDate) bool {
	if p.cfg.FromDate == "" && p.cfg.ToDate == "" {
		return true
	}

	day := d.Timestamp.Format(config.DateLayout)

	if p.cfg.FromDate != "" && day < p.cfg.FromDate {
		return false
	}
	if p.cfg.ToDate != "" && day > p.cfg.ToDate {
		return false
	}

	return true
}
