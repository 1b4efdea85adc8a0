package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type nonRealTimeMeta struct {
	XMLName      xml.Name `xml:"NonRealTimeMeta"`
	CreationDate struct {
		Value string `xml:"value,attr"`
	} `xml:"CreationDate"`
}

// ClipXMLPath returns the <clip>M01.XML file some cameras write next to a video clip,
// or "" when there is none.
func ClipXMLPath(videoPath string) string {
	dir := filepath.Dir(videoPath)
	basename := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	for _, name := range []string{basename + "M01.XML", basename + "M01.xml"} {
		xmlPath := filepath.Join(dir, name)
		if _, err := os.Stat(xmlPath); err == nil {
			return xmlPath
		}
	}

	return ""
}

// ReadClipCreationDate returns the CreationDate of a clip XML file in tag form,
// "YYYY:MM:DD HH:MM:SS±HH:MM".
func ReadClipCreationDate(xmlPath string) (string, error) {
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return "", fmt.Errorf("failed to read XML: %w", err)
	}

	var meta nonRealTimeMeta
	if err := xml.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("failed to parse XML: %w", err)
	}

	if meta.CreationDate.Value == "" {
		return "", errors.New("CreationDate not found in XML")
	}

	t, err := time.Parse(time.RFC3339, meta.CreationDate.Value)
	if err != nil {
		return "", fmt.Errorf("invalid date format: %w", err)
	}

	return t.Format(tagDateLayout + "-07:00"), nil
}
