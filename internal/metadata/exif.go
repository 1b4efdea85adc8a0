package metadata

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/On-Jun9/phockup/pkg/types"
	"github.com/rwcarlsen/goexif/exif"
)

var errNoEXIFDate = errors.New("no capture time found in EXIF")

// EXIF date fields and the exiftool tag names they are reported under.
var exifDateFields = []struct {
	field     exif.FieldName
	tag       string
	subsec    exif.FieldName
	subsecTag string
}{
	{exif.DateTimeOriginal, "DateTimeOriginal", exif.SubSecTimeOriginal, "SubSecDateTimeOriginal"},
	{exif.DateTimeDigitized, "CreateDate", exif.SubSecTimeDigitized, "SubSecCreateDate"},
	{exif.DateTime, "ModifyDate", exif.SubSecTime, "SubSecModifyDate"},
}

// readEXIF adds the EXIF date tags of path to tags.
func readEXIF(path string, tags types.Tags) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return fmt.Errorf("no EXIF data: %w", err)
	}

	found := false
	for _, d := range exifDateFields {
		value, ok := exifString(x, d.field)
		if !ok {
			continue
		}
		found = true
		tags[d.tag] = value
		if sub, ok := exifString(x, d.subsec); ok {
			tags[d.subsecTag] = value + "." + sub
		}
	}

	if !found {
		return errNoEXIFDate
	}
	return nil
}

func exifString(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	return s, s != ""
}
