package types

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"shorts", "podcast"} {
		m, err := ParseMode(s)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", s, err)
		}
		if string(m) != s {
			t.Errorf("ParseMode(%q) = %q", s, m)
		}
	}

	_, err := ParseMode("reels")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestKindKeepsCause(t *testing.T) {
	err := fmt.Errorf("%w: edge-tts: %w", ErrRender, io.ErrUnexpectedEOF)

	if Kind(err) != ErrRender {
		t.Errorf("Kind = %v, want ErrRender", Kind(err))
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause lost from chain")
	}
	if Kind(io.EOF) != nil {
		t.Error("unclassified error should have no kind")
	}
}

func TestNewUploadRecordTimestamp(t *testing.T) {
	loc := time.FixedZone("TRT", 3*60*60)
	rec := NewUploadRecord(time.Date(2024, 5, 1, 9, 30, 0, 0, loc), "abc123", "Project Orion", ModeShorts)

	if rec.Timestamp != "2024-05-01T06:30:00Z" {
		t.Errorf("Timestamp = %q", rec.Timestamp)
	}
	if rec.ExternalVideoID != "abc123" || rec.Mode != ModeShorts {
		t.Errorf("unexpected record %+v", rec)
	}
}
