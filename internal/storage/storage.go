// Package storage uploads finished reports to blob storage.
package storage

import (
	"context"
	"regexp"
	"strings"
	"time"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultBlobPrefix = "azure_devops_report_"
	blobExt           = ".xlsx"
)

// Uploader copies a local file to a named blob and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, blobName string) (string, error)
}

var unsafeBlobChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SafeBlobName turns a caller-supplied file name into a blob name. Unsafe
// characters are dropped and .xlsx is appended when missing. An empty name
// yields a timestamped default.
func SafeBlobName(name string, now time.Time) string {
	name = unsafeBlobChars.ReplaceAllString(strings.TrimSpace(name), "")
	name = strings.Trim(name, ".")
	if strings.EqualFold(name, strings.TrimPrefix(blobExt, ".")) || name == "" {
		return defaultBlobPrefix + now.Format("20060102_150405") + blobExt
	}
	if !strings.HasSuffix(strings.ToLower(name), blobExt) {
		name += blobExt
	}
	return name
}
