package uploader

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// captureTimeSample caps how many files are probed for an embedded
// capture timestamp when registering a batch.
const captureTimeSample = 25

// CaptureTime extracts the embedded capture timestamp from an image.
func CaptureTime(localPath string) (time.Time, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	meta, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	return meta.DateTime()
}

// EarliestCaptureTime probes a sample of the batch for EXIF capture
// timestamps and returns the earliest one found. Batches without any
// readable timestamp (movies, stripped images) fall back to now.
func EarliestCaptureTime(files []File, now time.Time) time.Time {
	earliest := time.Time{}
	probed := 0
	for _, f := range files {
		if probed >= captureTimeSample {
			break
		}
		probed++
		ts, err := CaptureTime(f.LocalPath)
		if err != nil {
			continue
		}
		if earliest.IsZero() || ts.Before(earliest) {
			earliest = ts
		}
	}
	if earliest.IsZero() {
		return now
	}
	return earliest
}
