package metadata

import (
	"context"
	"fmt"
	"regexp"

	"github.com/On-Jun9/phockup/pkg/types"
)

// MIMETypeTag is the tag every backend fills with the detected MIME type.
const MIMETypeTag = "MIMEType"

// Extractor returns the tag map of a file. An error means "no tags".
type Extractor interface {
	Extract(ctx context.Context, path string) (types.Tags, error)
	Close() error
}

var mediaMIME = regexp.MustCompile(`^(image/.+|video/.+|application/vnd\.adobe\.photoshop)$`)

// New builds the extractor for the named backend ("exiftool" or "native").
func New(backend, exiftoolPath string, workers int) (Extractor, error) {
	switch backend {
	case "", "exiftool":
		return NewExifTool(exiftoolPath, workers)
	case "native":
		return NewNative(), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", backend)
	}
}

// KindFromTags classifies a file by its MIMEType tag.
func KindFromTags(tags types.Tags) types.MediaKind {
	mime, ok := tags[MIMETypeTag].(string)
	if !ok || mime == "" {
		return types.MediaKindUnknown
	}
	if !mediaMIME.MatchString(mime) {
		return types.MediaKindOther
	}
	if len(mime) >= 6 && mime[:6] == "video/" {
		return types.MediaKindVideo
	}
	return types.MediaKindImage
}
