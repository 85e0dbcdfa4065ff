package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
)

func TestValidateIngestEvent(t *testing.T) {
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		event  ingestion.IngestEvent
		fields []string
	}{
		{"path only", ingestion.IngestEvent{Path: "/docs/a.txt"}, nil},
		{"inline content", ingestion.IngestEvent{Path: "/docs/a.txt", Content: "hello", ModifiedAt: modified}, nil},
		{"missing path", ingestion.IngestEvent{Path: "  "}, []string{"path"}},
		{"relative path", ingestion.IngestEvent{Path: "docs/a.txt"}, []string{"path"}},
		{"long path", ingestion.IngestEvent{Path: "/" + strings.Repeat("a", maxPathLength)}, []string{"path"}},
		{"invalid utf8", ingestion.IngestEvent{Path: "/a", Content: "\xff\xfe", ModifiedAt: modified}, []string{"content"}},
		{"content without time", ingestion.IngestEvent{Path: "/a", Content: "x"}, []string{"modified_at"}},
		{"several", ingestion.IngestEvent{Content: "x"}, []string{"path", "modified_at"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIngestEvent(&tt.event)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Errorf("fields = %v, want %v", verr.Fields, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, verr.Fields)
				}
			}
		})
	}
}
