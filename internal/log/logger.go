package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/On-Jun9/phockup/pkg/types"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

type Options struct {
	// File is an optional log file, appended to.
	File string
	// JSON writes the log file as JSON lines.
	JSON  bool
	Debug bool
	// Quiet limits the console to warnings and errors.
	Quiet bool
	// Console defaults to stdout.
	Console io.Writer
	RunID   string
}

// Logger writes run logs to the console and, optionally, a log file.
type Logger struct {
	console io.Writer
	base    *logrus.Logger
	entry   *logrus.Entry
	stdout  *sink
	file    *os.File
}

// sink is a logrus hook writing entries up to a level through its own formatter.
type sink struct {
	mu        sync.Mutex
	w         io.Writer
	level     logrus.Level
	formatter logrus.Formatter
}

func (s *sink) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *sink) Fire(entry *logrus.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Level > s.level {
		return nil
	}
	line, err := s.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = s.w.Write(line)
	return err
}

func (s *sink) setLevel(level logrus.Level) {
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	level := logrus.InfoLevel
	if opts.Debug {
		level = logrus.DebugLevel
	}
	consoleLevel := level
	if opts.Quiet {
		consoleLevel = logrus.WarnLevel
	}

	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(level)

	colors := isTerminal(console)
	stdout := &sink{
		w:     console,
		level: consoleLevel,
		formatter: &logrus.TextFormatter{
			ForceColors:     colors,
			DisableColors:   !colors,
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		},
	}
	base.AddHook(stdout)

	l := &Logger{console: console, base: base, stdout: stdout}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.file = file

		var formatter logrus.Formatter = &logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		}
		if opts.JSON {
			formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
		}
		base.AddHook(&sink{w: file, level: level, formatter: formatter})
	}

	l.entry = logrus.NewEntry(base)
	if opts.RunID != "" {
		l.entry = l.entry.WithField("run", opts.RunID)
	}

	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l, _ := New(Options{Console: io.Discard})
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// QuietConsole limits the console to warnings, e.g. while a progress bar is drawn.
func (l *Logger) QuietConsole() {
	l.stdout.setLevel(logrus.WarnLevel)
}

func (l *Logger) Info(msg string) {
	l.entry.Info(msg)
}

func (l *Logger) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *Logger) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *Logger) Error(msg string, err error) {
	if err == nil {
		l.entry.Error(msg)
		return
	}
	l.entry.WithError(err).Error(msg)
}

// LogOutcome writes the one-line record of a processed file.
func (l *Logger) LogOutcome(o types.FileOutcome) {
	src := o.Task.SourcePath
	e := l.entry.WithFields(logrus.Fields{
		"outcome": string(o.Outcome),
	})
	if o.DryRun {
		e = e.WithField("dry_run", true)
	}

	switch o.Outcome {
	case types.OutcomeCopied, types.OutcomeMoved, types.OutcomeLinked:
		e.Infof("%s => %s", src, o.Target)
	case types.OutcomeDuplicate:
		e.Infof("%s => skipped, duplicated file %s", src, o.Target)
	case types.OutcomeDeleted:
		e.Infof("%s => deleted, duplicated file %s", src, o.Target)
	case types.OutcomeVanished:
		e.Warnf("%s => skipped, no such file or directory", src)
	case types.OutcomeFiltered, types.OutcomeUnknown:
		e.Infof("%s => skipped, %s", src, o.Reason)
	default:
		if o.Error != nil {
			e = e.WithError(o.Error)
		}
		e.Errorf("%s => failed", src)
	}
}

// Sidecar logs a sidecar transfer. A nil err means it went through.
func (l *Logger) Sidecar(src, target string, err error) {
	if err != nil {
		l.entry.WithError(err).Warnf("%s => skipped sidecar %s", src, target)
		return
	}
	l.entry.Infof("%s => %s", src, target)
}

// Summary prints the end-of-run table to the console and records the totals in the log.
func (l *Logger) Summary(s types.RunSummary) {
	fmt.Fprintln(l.console, renderSummary(s))

	l.entry.WithFields(logrus.Fields{
		"processed":  s.Processed,
		"copied":     s.Copied,
		"moved":      s.Moved,
		"linked":     s.Linked,
		"duplicates": s.Duplicates,
		"deleted":    s.Deleted,
		"unknown":    s.Unknown,
		"filtered":   s.Filtered,
		"failed":     s.Failed,
	}).Info("run finished")

	l.entry.Debugf("Processed %d files in %.2f seconds. Average Throughput: %.2f files/second",
		s.Processed, s.Duration.Seconds(), s.FilesPerSecond())
}
