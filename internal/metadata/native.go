package metadata

import (
	"context"
	"strings"

	"github.com/On-Jun9/phockup/pkg/types"
	"github.com/gabriel-vasile/mimetype"
)

// Native reads tags in-process, without exiftool. It reports the same tag names
// exiftool would for the fields it understands.
type Native struct{}

func NewNative() *Native {
	return &Native{}
}

func (n *Native) Extract(ctx context.Context, path string) (types.Tags, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, err
	}

	tags := types.Tags{MIMETypeTag: baseMIME(mime.String())}

	switch KindFromTags(tags) {
	case types.MediaKindImage:
		// Images without EXIF keep their MIME type and fall back to the file name.
		_ = readEXIF(path, tags)
	case types.MediaKindVideo:
		if mime.Is("video/x-matroska") || mime.Is("video/webm") {
			if value, err := readMKVDate(path); err == nil {
				tags["CreateDate"] = value
			}
		} else if value, err := readMP4CreateDate(path); err == nil {
			tags["CreateDate"] = value
		}
		if xmlPath := ClipXMLPath(path); xmlPath != "" {
			if value, err := ReadClipCreationDate(xmlPath); err == nil {
				tags["CreationDate"] = value
			}
		}
	}

	return tags, nil
}

func (n *Native) Close() error {
	return nil
}

// baseMIME drops parameters such as "; charset=utf-8".
func baseMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}
