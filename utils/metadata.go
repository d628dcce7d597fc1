package utils

import (
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// GetCaptureTime extracts the EXIF capture timestamp (unix seconds) from an
// image file. Returns nil when the file has no usable EXIF data; edge webcam
// frames frequently lack it and that is not an error.
func GetCaptureTime(imagePath string) *int64 {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	exifData, err := exif.Decode(f)
	if err != nil || exifData == nil {
		return nil
	}

	takenTime, err := exifData.DateTime()
	if err != nil {
		return nil
	}

	unixTime := takenTime.Unix()
	return &unixTime
}
