package receipt

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// UploadLimits constrains what ProcessUpload accepts
type UploadLimits struct {
	MaxBytes   int64
	Extensions []string // lower case, without the dot
}

// DefaultUploadLimits allows 10MB images, PDFs and text files
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxBytes:   10 << 20,
		Extensions: []string{"jpg", "jpeg", "png", "pdf", "txt"},
	}
}

// Check returns an *UploadError if the file violates the limits
func (l UploadLimits) Check(filename string, size int64) error {
	if size == 0 {
		return &UploadError{Message: "The uploaded file is empty."}
	}
	if l.MaxBytes > 0 && size > l.MaxBytes {
		return &UploadError{Message: fmt.Sprintf("File is too large. Maximum size is %s.", formatBytes(l.MaxBytes))}
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !slices.Contains(l.Extensions, ext) {
		return &UploadError{Message: fmt.Sprintf("Unsupported file type %q. Allowed types: %s.",
			ext, strings.Join(l.Extensions, ", "))}
	}
	return nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
