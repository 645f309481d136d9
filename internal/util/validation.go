package util

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".webm": true, ".m4v": true}
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}
)

// IsValidVideoFile checks if a filename has a supported video extension
func IsValidVideoFile(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsValidImageFile checks if a filename has a supported image extension
func IsValidImageFile(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ValidateFilename checks if a display filename is valid.
// It is required, cannot contain directory separators and must be <= 255 chars.
func ValidateFilename(filename string) error {
	if filename == "" {
		return errors.New("filename is required")
	}
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return errors.New("filename cannot contain directory paths")
	}
	if len(filename) > 255 {
		return errors.New("filename too long (max 255 characters)")
	}
	return nil
}
