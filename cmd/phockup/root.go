package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/On-Jun9/phockup/internal/config"
	"github.com/On-Jun9/phockup/internal/log"
	"github.com/On-Jun9/phockup/internal/metadata"
	"github.com/On-Jun9/phockup/internal/pipeline"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type options struct {
	cfgFile         string
	move            bool
	link            bool
	dirFormat       string
	originalNames   bool
	dateRegex       string
	dateFields      []string
	timezoneTag     string
	timestamp       bool
	dryRun          bool
	maxDepth        int
	concurrency     int
	fileType        string
	noDateDir       string
	skipUnknown     bool
	deleteDups      bool
	removeEmptyDirs bool
	outputPrefix    string
	outputSuffix    string
	fromDate        string
	toDate          string
	verify          bool
	metadata        string
	exiftool        string
	logFile         string
	logJSON         bool
	debug           bool
	quiet           bool
	progress        bool
}

func newRootCmd() *cobra.Command {
	return newCommand(&options{})
}

func newCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phockup INPUTDIR OUTPUTDIR",
		Short: "Organize photos and videos into folders by capture date",
		Long: `phockup walks INPUTDIR, finds the capture date of every photo and video
(metadata tags, then the file name, then optionally the file time) and places
each file under OUTPUTDIR as YYYY/MM/DD/YYYYMMDD-HHMMSS.ext.
Files without a date go to OUTPUTDIR/unknown.`,
		Version:       appVersion,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			return organize(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.cfgFile, "config", "", "config file (.yaml or .toml)")
	f.BoolVarP(&opts.move, "move", "m", false, "move files instead of copying them")
	f.BoolVarP(&opts.link, "link", "l", false, "hardlink files instead of copying them")
	f.StringVarP(&opts.dirFormat, "date", "d", "YYYY/MM/DD", "directory format (YYYY YY MM M DD D)")
	f.BoolVar(&opts.originalNames, "original-names", false, "keep the original file names")
	f.StringVarP(&opts.dateRegex, "regex", "r", "", "regex with year/month/day[/hour/minute/second] groups for file name dates")
	f.StringSliceVarP(&opts.dateFields, "date-field", "f", nil, "metadata tags to read the date from, in order (space or comma separated)")
	f.StringVar(&opts.timezoneTag, "timezone-tag", "TimeZone", "tag holding the UTC offset of the capture date")
	f.BoolVarP(&opts.timestamp, "timestamp", "t", false, "fall back to the file modification time")
	f.BoolVarP(&opts.dryRun, "dry-run", "y", false, "show what would happen without touching any file")
	f.IntVar(&opts.maxDepth, "maxdepth", -1, "descend at most this many directory levels (-1 unlimited)")
	f.IntVarP(&opts.concurrency, "max-concurrency", "c", 1, "number of files processed in parallel (1-255)")
	f.StringVar(&opts.fileType, "file-type", "", "only process image or video files")
	f.StringVar(&opts.noDateDir, "no-date-dir", "unknown", "directory name for files without a date")
	f.BoolVar(&opts.skipUnknown, "skip-unknown", false, "ignore files without a date")
	f.BoolVar(&opts.deleteDups, "delete-duplicates", false, "delete duplicated sources (with --move and --skip-unknown)")
	f.BoolVar(&opts.removeEmptyDirs, "rmdirs", false, "remove empty input directories after --move")
	f.StringVar(&opts.outputPrefix, "output-prefix", "", "path inserted between OUTPUTDIR and the date directories")
	f.StringVar(&opts.outputSuffix, "output-suffix", "", "path appended after the date directories")
	f.StringVar(&opts.fromDate, "from-date", "", "skip files dated before YYYY-MM-DD")
	f.StringVar(&opts.toDate, "to-date", "", "skip files dated after YYYY-MM-DD")
	f.BoolVar(&opts.verify, "verify", false, "verify size and SHA-256 after copying")
	f.StringVar(&opts.metadata, "metadata", config.BackendExiftool, "metadata backend: exiftool or native")
	f.StringVar(&opts.exiftool, "exiftool", "", "exiftool binary (default: exiftool on PATH)")
	f.StringVar(&opts.logFile, "log", "", "also write the log to this file")
	f.BoolVar(&opts.logJSON, "log-json", false, "write the log file as JSON lines")
	f.BoolVar(&opts.debug, "debug", false, "debug logging")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only log warnings and errors")
	f.BoolVar(&opts.progress, "progress", false, "show a progress bar")

	return cmd
}

// buildConfig merges the config file, explicitly set flags and the positional
// directories, then validates the result.
func buildConfig(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.cfgFile != "" {
		var err error
		cfg, err = config.LoadFromFile(opts.cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	cfg.InputDir = args[0]
	cfg.OutputDir = args[1]

	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("move", func() { cfg.Move = opts.move })
	set("link", func() { cfg.Link = opts.link })
	set("date", func() { cfg.DirFormat = opts.dirFormat })
	set("original-names", func() { cfg.OriginalNames = opts.originalNames })
	set("regex", func() { cfg.DateRegex = opts.dateRegex })
	set("date-field", func() { cfg.DateFields = splitFields(opts.dateFields) })
	set("timezone-tag", func() { cfg.TimezoneTag = opts.timezoneTag })
	set("timestamp", func() { cfg.Timestamp = opts.timestamp })
	set("dry-run", func() { cfg.DryRun = opts.dryRun })
	set("maxdepth", func() { cfg.MaxDepth = opts.maxDepth })
	set("max-concurrency", func() { cfg.Concurrency = opts.concurrency })
	set("file-type", func() { cfg.FileType = opts.fileType })
	set("no-date-dir", func() { cfg.NoDateDir = opts.noDateDir })
	set("skip-unknown", func() { cfg.SkipUnknown = opts.skipUnknown })
	set("delete-duplicates", func() { cfg.DeleteDups = opts.deleteDups })
	set("rmdirs", func() { cfg.RemoveEmptyDirs = opts.removeEmptyDirs })
	set("output-prefix", func() { cfg.OutputPrefix = opts.outputPrefix })
	set("output-suffix", func() { cfg.OutputSuffix = opts.outputSuffix })
	set("from-date", func() { cfg.FromDate = opts.fromDate })
	set("to-date", func() { cfg.ToDate = opts.toDate })
	set("verify", func() { cfg.Verify = opts.verify })
	set("metadata", func() { cfg.Metadata = opts.metadata })
	set("exiftool", func() { cfg.ExiftoolPath = opts.exiftool })
	set("log", func() { cfg.LogFile = opts.logFile })
	set("log-json", func() { cfg.LogJSON = opts.logJSON })
	set("debug", func() { cfg.Debug = opts.debug })
	set("quiet", func() { cfg.Quiet = opts.quiet })
	set("progress", func() { cfg.Progress = opts.progress })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitFields accepts tag lists separated by spaces as well as commas.
func splitFields(values []string) []string {
	var fields []string
	for _, v := range values {
		fields = append(fields, strings.Fields(v)...)
	}
	return fields
}

func organize(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := log.New(log.Options{
		File:  cfg.LogFile,
		JSON:  cfg.LogJSON,
		Debug: cfg.Debug,
		Quiet: cfg.Quiet,
		RunID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer logger.Close()

	meta, err := metadata.New(cfg.Metadata, cfg.ExiftoolPath, cfg.Concurrency)
	if err != nil {
		return err
	}
	defer meta.Close()

	p, err := pipeline.New(cfg, meta, logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if cfg.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
		logger.QuietConsole()
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Organizing"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
		)
		p.SetProgressCallback(func(u pipeline.ProgressUpdate) {
			switch u.Type {
			case pipeline.ProgressFile:
				bar.Add(1)
			case pipeline.ProgressComplete:
				bar.Finish()
			}
		})
	}

	_, err = p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Warn("Exiting phockup...")
		return nil
	}
	return err
}
