package script

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultFolder is assigned to scripts saved without a folder.
	DefaultFolder = "General"

	// AllFolders is the folder-filter sentinel meaning "no folder filter".
	// It is never stored on a script.
	AllFolders = "All"

	// DefaultTitle is what the viewer shows when the working buffer has no title.
	DefaultTitle = "My Speech"
)

// Script is a saved unit of text content for the viewer.
// The JSON layout is the persisted record format.
type Script struct {
	// ID is a ULID, immutable once assigned and never reused
	ID string `json:"id" yaml:"id"`

	// Title is the non-empty display string
	Title string `json:"title" yaml:"title"`

	// Content is the text body, stored verbatim
	Content string `json:"content" yaml:"content"`

	// Folder is a free-form grouping tag; never empty
	Folder string `json:"folder" yaml:"folder"`

	// CreatedAt is milliseconds since epoch, set once at first persistence
	CreatedAt int64 `json:"createdAt" yaml:"created_at"`

	// UpdatedAt is milliseconds since epoch, refreshed on every persistence
	UpdatedAt int64 `json:"updatedAt" yaml:"updated_at"`
}

// NormalizeFolder trims surrounding whitespace and maps a blank folder to DefaultFolder.
func NormalizeFolder(folder string) string {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return DefaultFolder
	}
	return folder
}

// Validate checks that a decoded record satisfies the data-model invariants.
// A missing folder is not an error; callers default it with NormalizeFolder.
func Validate(s Script) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("script has no id")
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("script %s has no title", s.ID)
	}
	if s.CreatedAt < 0 {
		return fmt.Errorf("script %s has negative createdAt", s.ID)
	}
	if s.UpdatedAt < s.CreatedAt {
		return fmt.Errorf("script %s has updatedAt %d before createdAt %d", s.ID, s.UpdatedAt, s.CreatedAt)
	}
	return nil
}

// Millis converts t to milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Time converts a millisecond timestamp back to a time.Time.
func Time(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// CountWords returns the whitespace-separated word count, used for
// reading-time estimates in the library listing.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Summary is a script without its content, for listings.
type Summary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Folder    string `json:"folder"`
	Chars     int    `json:"chars"`
	Words     int    `json:"words"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Summarize builds a Summary from a script.
func Summarize(s Script) Summary {
	return Summary{
		ID:        s.ID,
		Title:     s.Title,
		Folder:    s.Folder,
		Chars:     CountChars(s.Content),
		Words:     CountWords(s.Content),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
