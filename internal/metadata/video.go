package metadata

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/abema/go-mp4"
	"github.com/remko/go-mkvparse"
)

// Seconds between the QuickTime epoch (1904-01-01) and the Unix epoch.
const appleEpochOffset = 2082844800

const tagDateLayout = "2006:01:02 15:04:05"

// readMP4CreateDate returns the moov/mvhd creation time of an ISO BMFF file in UTC.
func readMP4CreateDate(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()},
	})
	if err != nil {
		return "", fmt.Errorf("error reading MP4 structure: %w", err)
	}

	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		creationTime := mvhd.GetCreationTime()
		if creationTime == 0 {
			return "", errors.New("mvhd creation time is zero")
		}
		t := time.Unix(int64(creationTime)-appleEpochOffset, 0).UTC()
		return t.Format(tagDateLayout), nil
	}

	return "", fmt.Errorf("mvhd box not found in %s", path)
}

type mkvDateHandler struct {
	date time.Time
}

var errMKVDateFound = errors.New("mkv date found")

func (h *mkvDateHandler) HandleMasterBegin(id mkvparse.ElementID, info mkvparse.ElementInfo) (bool, error) {
	// Clusters hold the media data; the segment info comes before them.
	return id != mkvparse.ClusterElement, nil
}

func (h *mkvDateHandler) HandleMasterEnd(id mkvparse.ElementID, info mkvparse.ElementInfo) error {
	return nil
}

func (h *mkvDateHandler) HandleString(id mkvparse.ElementID, value string, info mkvparse.ElementInfo) error {
	return nil
}

func (h *mkvDateHandler) HandleInteger(id mkvparse.ElementID, value int64, info mkvparse.ElementInfo) error {
	return nil
}

func (h *mkvDateHandler) HandleFloat(id mkvparse.ElementID, value float64, info mkvparse.ElementInfo) error {
	return nil
}

func (h *mkvDateHandler) HandleDate(id mkvparse.ElementID, value time.Time, info mkvparse.ElementInfo) error {
	if id == mkvparse.DateUTCElement {
		h.date = value
		return errMKVDateFound
	}
	return nil
}

func (h *mkvDateHandler) HandleBinary(id mkvparse.ElementID, value []byte, info mkvparse.ElementInfo) error {
	return nil
}

// readMKVDate returns the segment DateUTC of a Matroska/WebM file.
func readMKVDate(path string) (string, error) {
	h := &mkvDateHandler{}
	err := mkvparse.ParsePath(path, h)
	if !h.date.IsZero() {
		return h.date.UTC().Format(tagDateLayout), nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading MKV structure: %w", err)
	}
	return "", fmt.Errorf("DateUTC not found in %s", path)
}
