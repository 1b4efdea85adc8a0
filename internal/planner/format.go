package planner

import (
	"os"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// dirTokens maps the user-facing date tokens to strftime directives.
// Ordered longest first so that a scan picks DDD over DD and MM over M.
var dirTokens = []struct {
	token     string
	directive string
}{
	{"YYYY", "%Y"},
	{"DDD", "%j"},
	{"YY", "%y"},
	{"MM", "%m"},
	{"DD", "%d"},
	{"M", "%B"},
	{"m", "%b"},
	{"U", "%U"},
	{"W", "%W"},
}

// DirFormat is a parsed directory date format.
type DirFormat struct {
	template string
	pattern  string
}

// ParseDirFormat translates a template such as "YYYY/MM/DD" or "YY/m-DD" into a
// strftime pattern. The template is scanned once, left to right, taking the longest
// token at each position; everything else is literal. Both "/" and "\" become the
// platform path separator.
func ParseDirFormat(template string) DirFormat {
	var b strings.Builder

	for i := 0; i < len(template); {
		if directive, n := matchToken(template[i:]); n > 0 {
			b.WriteString(directive)
			i += n
			continue
		}

		switch c := template[i]; c {
		case '/', '\\':
			b.WriteByte(os.PathSeparator)
		case '%':
			b.WriteString("%%")
		default:
			b.WriteByte(c)
		}
		i++
	}

	return DirFormat{template: template, pattern: b.String()}
}

func matchToken(s string) (string, int) {
	for _, t := range dirTokens {
		if strings.HasPrefix(s, t.token) {
			return t.directive, len(t.token)
		}
	}
	return "", 0
}

// Pattern returns the strftime pattern the template was translated to.
func (f DirFormat) Pattern() string {
	return f.pattern
}

func (f DirFormat) String() string {
	return f.template
}

// Format renders t's wall-clock fields with the directory format.
func (f DirFormat) Format(t time.Time) string {
	return strftime.Format(f.pattern, t)
}
