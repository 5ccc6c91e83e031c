package script

import (
	"testing"
	"time"
)

func TestNormalizeFolder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", DefaultFolder},
		{"whitespace only", "   \t", DefaultFolder},
		{"plain", "Work", "Work"},
		{"trimmed", "  Work  ", "Work"},
		{"case preserved", "wOrK", "wOrK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFolder(tt.input); got != tt.expected {
				t.Errorf("NormalizeFolder(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Script{ID: "a", Title: "Keynote", Folder: "Work", CreatedAt: 10, UpdatedAt: 20}

	tests := []struct {
		name    string
		mutate  func(s *Script)
		wantErr bool
	}{
		{"valid", func(s *Script) {}, false},
		{"equal timestamps", func(s *Script) { s.UpdatedAt = s.CreatedAt }, false},
		{"missing folder is allowed", func(s *Script) { s.Folder = "" }, false},
		{"missing id", func(s *Script) { s.ID = "" }, true},
		{"blank title", func(s *Script) { s.Title = "  " }, true},
		{"updated before created", func(s *Script) { s.UpdatedAt = 5 }, true},
		{"negative created", func(s *Script) { s.CreatedAt = -1; s.UpdatedAt = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := Validate(s)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMillisRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	ms := Millis(now)
	if ms != now.UnixMilli() {
		t.Fatalf("Millis() = %d, want %d", ms, now.UnixMilli())
	}
	if !Time(ms).Equal(now) {
		t.Errorf("Time(Millis(t)) = %v, want %v", Time(ms), now)
	}
}

func TestSummarize(t *testing.T) {
	s := Script{
		ID:        "01J",
		Title:     "Keynote",
		Content:   "Hello  wörld\nagain",
		Folder:    "Work",
		CreatedAt: 1,
		UpdatedAt: 2,
	}

	sum := Summarize(s)
	if sum.Words != 3 {
		t.Errorf("Words = %d, want 3", sum.Words)
	}
	if sum.Chars != 18 {
		t.Errorf("Chars = %d, want 18", sum.Chars)
	}
	if sum.ID != s.ID || sum.Folder != s.Folder || sum.UpdatedAt != s.UpdatedAt {
		t.Errorf("Summarize() = %+v, fields not copied", sum)
	}
}
