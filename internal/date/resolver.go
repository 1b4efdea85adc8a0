// Package date derives the capture date of a media file from its tags, its file name
// or its modification time.
package date

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/On-Jun9/phockup/pkg/types"
	"github.com/djherbis/times"
)

// DefaultRegex matches names such as IMG_20160915_123456.jpg or VID-20160915-123456.mp4.
var DefaultRegex = regexp.MustCompile(
	`.*[_-](?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})[_-]?(?P<hour>\d{2})(?P<minute>\d{2})(?P<second>\d{2})`)

// Accepted tag date layouts, tried in order.
var tagLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
}

var (
	offsetSuffix = regexp.MustCompile(`[+-]\d{2}:\d{2}$`)
	offsetValue  = regexp.MustCompile(`^([+-])?(\d{1,2}):(\d{2})$`)
)

type Options struct {
	// Fields are the tag names tried in order.
	Fields []string
	// TimezoneTag names a tag holding an HH:MM offset applied to dates without one.
	TimezoneTag string
	// Regex overrides DefaultRegex for file name dates.
	Regex *regexp.Regexp
	// Timestamp enables the modification time fallback.
	Timestamp bool
}

// Resolver applies the date strategies in order: tags, file name, modification time.
type Resolver struct {
	fields      []string
	timezoneTag string
	regex       *regexp.Regexp
	timestamp   bool
}

func NewResolver(opts Options) *Resolver {
	re := opts.Regex
	if re == nil {
		re = DefaultRegex
	}
	return &Resolver{
		fields:      opts.Fields,
		timezoneTag: opts.TimezoneTag,
		regex:       re,
		timestamp:   opts.Timestamp,
	}
}

// Resolve returns the first date found, or nil when the date is unknown. An empty path
// limits resolution to the tags.
func (r *Resolver) Resolve(path string, tags types.Tags) *types.ResolvedDate {
	if d := r.FromTags(tags); d != nil {
		return d
	}
	if path == "" {
		return nil
	}
	if d := FromFilename(path, r.regex); d != nil {
		return d
	}
	if r.timestamp {
		if d, err := FromTimestamp(path); err == nil {
			return d
		}
	}
	return nil
}

// FromTags parses the selected date tag. A value carrying its own UTC offset wins over
// earlier candidates without one.
func (r *Resolver) FromTags(tags types.Tags) *types.ResolvedDate {
	value, hasOffset := r.selectTag(tags)
	if value == "" {
		return nil
	}

	d, ok := ParseDateString(value)
	if !ok {
		return nil
	}

	if !hasOffset && r.timezoneTag != "" {
		if raw, ok := tags[r.timezoneTag].(string); ok {
			if offset, ok := parseOffset(raw); ok {
				d.Timestamp = d.Timestamp.Add(offset)
			}
		}
	}
	return d
}

func (r *Resolver) selectTag(tags types.Tags) (string, bool) {
	var candidate string
	for _, key := range r.fields {
		value, ok := tags[key].(string)
		if !ok || value == "" || strings.HasPrefix(value, "0000") {
			continue
		}
		if offsetSuffix.MatchString(value) {
			return value, true
		}
		if candidate == "" {
			candidate = value
		}
	}
	return candidate, false
}

// ParseDateString parses "YYYY:MM:DD HH:MM:SS[.fraction][±HH:MM]" or the same with
// dashes in the date. The fraction is kept verbatim as Subseconds.
func ParseDateString(value string) (*types.ResolvedDate, bool) {
	main, subseconds, _ := strings.Cut(value, ".")
	if i := strings.IndexByte(subseconds, '.'); i >= 0 {
		subseconds = subseconds[:i]
	}
	main = offsetSuffix.ReplaceAllString(strings.TrimSpace(main), "")
	subseconds = offsetSuffix.ReplaceAllString(subseconds, "")

	for _, layout := range tagLayouts {
		t, err := time.ParseInLocation(layout, main, time.UTC)
		if err == nil {
			return &types.ResolvedDate{Timestamp: t, Subseconds: subseconds}, true
		}
	}
	return nil, false
}

func parseOffset(value string) (time.Duration, bool) {
	m := offsetValue.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	if hours > 23 || minutes > 59 {
		return 0, false
	}

	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if m[1] == "-" {
		offset = -offset
	}
	return offset, true
}

// FromFilename extracts a date from the base name of path using the named groups
// year, month and day (required) and hour, minute and second (default 0).
func FromFilename(path string, re *regexp.Regexp) *types.ResolvedDate {
	if re == nil {
		re = DefaultRegex
	}
	m := re.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return nil
	}

	group := func(name string, required bool) (int, bool) {
		idx := re.SubexpIndex(name)
		if idx < 0 || m[idx] == "" {
			return 0, !required
		}
		n, err := strconv.Atoi(m[idx])
		return n, err == nil
	}

	var fields [6]int
	for i, name := range []string{"year", "month", "day", "hour", "minute", "second"} {
		n, ok := group(name, i < 3)
		if !ok {
			return nil
		}
		fields[i] = n
	}

	t, ok := buildDate(fields)
	if !ok {
		return nil
	}
	return &types.ResolvedDate{Timestamp: t}
}

func buildDate(f [6]int) (time.Time, bool) {
	year, month, day, hour, minute, second := f[0], f[1], f[2], f[3], f[4], f[5]
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalises overflowing days into the next month.
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// FromTimestamp returns the file's modification time in local time.
func FromTimestamp(path string) (*types.ResolvedDate, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return nil, err
	}
	return &types.ResolvedDate{Timestamp: ts.ModTime().Local().Truncate(time.Second)}, nil
}
