// Package validator checks ingest events before they reach the corpus and
// returns per-field error details.
package validator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
)

const (
	maxPathLength    = 4096
	maxContentLength = 16 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestEvent checks that the event names an absolute path and that
// any inline content is valid UTF-8 within the size limit.
func ValidateIngestEvent(ev *ingestion.IngestEvent) error {
	errs := make(map[string]string)

	path := strings.TrimSpace(ev.Path)
	switch {
	case path == "":
		errs["path"] = "path is required"
	case len(path) > maxPathLength:
		errs["path"] = fmt.Sprintf("path must be at most %d bytes", maxPathLength)
	case !filepath.IsAbs(path):
		errs["path"] = "path must be absolute"
	}
	if len(ev.Content) > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", maxContentLength)
	} else if !utf8.ValidString(ev.Content) {
		errs["content"] = "content must be valid UTF-8"
	}
	if ev.ModifiedAt.IsZero() && ev.Content != "" {
		errs["modified_at"] = "modified_at is required with inline content"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
