package utils

import (
	"path/filepath"
	"strings"
	"time"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// SanitizeAlertType strips everything but letters, digits and underscores so
// the alert type is safe to embed in a filename
func SanitizeAlertType(alertType string) string {
	var b strings.Builder
	for _, c := range alertType {
		if c == '_' ||
			(c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// StagedFilename builds the deterministic name a staged image is stored
// under: millisecond arrival timestamp, sanitized alert type, then the
// original upload name reduced to its base. The timestamp prefix keeps
// lexicographic order equal to arrival order and makes collisions between
// concurrent uploads practically impossible.
func StagedFilename(arrival time.Time, alertType, originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.jpg"
	}
	return arrival.Format("20060102_150405.000") + "_" + SanitizeAlertType(alertType) + "_" + base
}
