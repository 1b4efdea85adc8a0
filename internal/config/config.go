package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/On-Jun9/phockup/pkg/types"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar-date format accepted by the from/to bounds.
const DateLayout = "2006-01-02"

const (
	BackendExiftool = "exiftool"
	BackendNative   = "native"
)

// DefaultDateFields are the tags tried, in order, when no date fields are configured.
var DefaultDateFields = []string{
	"SubSecCreateDate",
	"SubSecDateTimeOriginal",
	"CreateDate",
	"DateTimeOriginal",
	"MediaCreateDate",
	"TrackCreateDate",
	"CreationDate",
}

type Config struct {
	InputDir        string   `yaml:"input_dir" toml:"input_dir"`
	OutputDir       string   `yaml:"output_dir" toml:"output_dir"`
	DirFormat       string   `yaml:"dir_format" toml:"dir_format"`
	Move            bool     `yaml:"move" toml:"move"`
	Link            bool     `yaml:"link" toml:"link"`
	OriginalNames   bool     `yaml:"original_names" toml:"original_names"`
	DateRegex       string   `yaml:"date_regex" toml:"date_regex"`
	DateFields      []string `yaml:"date_fields" toml:"date_fields"`
	TimezoneTag     string   `yaml:"timezone_tag" toml:"timezone_tag"`
	Timestamp       bool     `yaml:"timestamp" toml:"timestamp"`
	DryRun          bool     `yaml:"dry_run" toml:"dry_run"`
	MaxDepth        int      `yaml:"max_depth" toml:"max_depth"`
	Concurrency     int      `yaml:"concurrency" toml:"concurrency"`
	FileType        string   `yaml:"file_type" toml:"file_type"`
	NoDateDir       string   `yaml:"no_date_dir" toml:"no_date_dir"`
	SkipUnknown     bool     `yaml:"skip_unknown" toml:"skip_unknown"`
	DeleteDups      bool     `yaml:"delete_duplicates" toml:"delete_duplicates"`
	RemoveEmptyDirs bool     `yaml:"remove_empty_dirs" toml:"remove_empty_dirs"`
	OutputPrefix    string   `yaml:"output_prefix" toml:"output_prefix"`
	OutputSuffix    string   `yaml:"output_suffix" toml:"output_suffix"`
	FromDate        string   `yaml:"from_date" toml:"from_date"`
	ToDate          string   `yaml:"to_date" toml:"to_date"`
	Verify          bool     `yaml:"verify" toml:"verify"`
	Metadata        string   `yaml:"metadata" toml:"metadata"`
	ExiftoolPath    string   `yaml:"exiftool_path" toml:"exiftool_path"`
	LogFile         string   `yaml:"log_file" toml:"log_file"`
	LogJSON         bool     `yaml:"log_json" toml:"log_json"`
	Debug           bool     `yaml:"debug" toml:"debug"`
	Quiet           bool     `yaml:"quiet" toml:"quiet"`
	Progress        bool     `yaml:"progress" toml:"progress"`
}

func DefaultConfig() *Config {
	return &Config{
		DirFormat:   "YYYY/MM/DD",
		DateFields:  append([]string(nil), DefaultDateFields...),
		TimezoneTag: "TimeZone",
		MaxDepth:    -1,
		Concurrency: 1,
		NoDateDir:   "unknown",
		Metadata:    BackendExiftool,
	}
}

// LoadFromFile reads a YAML or TOML (by ".toml" extension) file on top of DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Mode returns the single active transfer strategy.
func (c *Config) Mode() types.TransferMode {
	switch {
	case c.Move:
		return types.TransferMove
	case c.Link:
		return types.TransferLink
	default:
		return types.TransferCopy
	}
}

// FileKind returns the media kind restriction, or "" when every kind is accepted.
func (c *Config) FileKind() types.MediaKind {
	return types.MediaKind(c.FileType)
}

// DateBounds parses the inclusive from/to bounds. Zero values mean unbounded.
func (c *Config) DateBounds() (from, to time.Time, err error) {
	if c.FromDate != "" {
		from, err = time.Parse(DateLayout, c.FromDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if c.ToDate != "" {
		to, err = time.Parse(DateLayout, c.ToDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func (c *Config) Validate() error {
	c.InputDir = cleanDir(c.InputDir)
	c.OutputDir = cleanDir(c.OutputDir)

	if c.InputDir == "" {
		return &ValidationError{Field: "input_dir", Message: "input directory is required"}
	}
	if c.OutputDir == "" {
		return &ValidationError{Field: "output_dir", Message: "output directory is required"}
	}
	if c.Move && c.Link {
		return &ValidationError{Field: "link", Message: "move and link are mutually exclusive"}
	}
	if c.Debug && c.Quiet {
		return &ValidationError{Field: "quiet", Message: "debug and quiet are mutually exclusive"}
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.Concurrency < 1 || c.Concurrency > 255 {
		return &ValidationError{Field: "concurrency", Message: "must be between 1 and 255"}
	}
	if c.MaxDepth < -1 || c.MaxDepth > 255 {
		return &ValidationError{Field: "max_depth", Message: "must be between 0 and 255, or -1 for unlimited"}
	}

	switch c.FileKind() {
	case "", types.MediaKindImage, types.MediaKindVideo:
	default:
		return &ValidationError{Field: "file_type", Message: "must be image or video"}
	}

	if c.Metadata == "" {
		c.Metadata = BackendExiftool
	}
	if c.Metadata != BackendExiftool && c.Metadata != BackendNative {
		return &ValidationError{Field: "metadata", Message: "must be exiftool or native"}
	}

	if c.DateRegex != "" {
		re, err := regexp.Compile(c.DateRegex)
		if err != nil {
			return &ValidationError{Field: "date_regex", Message: err.Error()}
		}
		for _, group := range []string{"year", "month", "day"} {
			if re.SubexpIndex(group) < 0 {
				return &ValidationError{Field: "date_regex", Message: "missing named group " + group}
			}
		}
	}

	from, to, err := c.DateBounds()
	if err != nil {
		return &ValidationError{Field: "from_date/to_date", Message: "dates must use YYYY-MM-DD: " + err.Error()}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return &ValidationError{Field: "from_date/to_date", Message: "from date is after to date"}
	}

	if c.DirFormat == "" {
		c.DirFormat = "YYYY/MM/DD"
	}
	if c.NoDateDir == "" {
		c.NoDateDir = "unknown"
	}
	if len(c.DateFields) == 0 {
		c.DateFields = append([]string(nil), DefaultDateFields...)
	}
	if c.LogFile != "" {
		c.LogFile = expandHome(c.LogFile)
	}

	return nil
}

func cleanDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}
	return filepath.Clean(expandHome(dir))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
