// Package query derives the library view from a collection snapshot.
// Every function is pure: inputs are never modified.
package query

import (
	"sort"
	"strings"

	"github.com/hpungsan/prompter/internal/script"
)

// Filter is the library's current filter state.
type Filter struct {
	Folder string `json:"folder,omitempty"` // "All" or blank means no folder filter
	Query  string `json:"query,omitempty"`
}

// FilterByFolder returns scripts whose Folder equals folder exactly.
// The "All" sentinel returns scripts unchanged.
func FilterByFolder(scripts []script.Script, folder string) []script.Script {
	if folder == script.AllFolders {
		return scripts
	}
	out := make([]script.Script, 0, len(scripts))
	for _, sc := range scripts {
		if sc.Folder == folder {
			out = append(out, sc)
		}
	}
	return out
}

// Search returns scripts whose title or content contains q, ignoring case.
// An empty query returns scripts unchanged.
func Search(scripts []script.Script, q string) []script.Script {
	if q == "" {
		return scripts
	}
	needle := strings.ToLower(q)
	out := make([]script.Script, 0, len(scripts))
	for _, sc := range scripts {
		if strings.Contains(strings.ToLower(sc.Title), needle) ||
			strings.Contains(strings.ToLower(sc.Content), needle) {
			out = append(out, sc)
		}
	}
	return out
}

// Sort returns a copy of scripts ordered by UpdatedAt descending.
// Equal UpdatedAt values are ordered by ID ascending.
func Sort(scripts []script.Script) []script.Script {
	out := make([]script.Script, len(scripts))
	copy(out, scripts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// View is the displayed list: folder filter first, then search, then sort.
// A blank folder is treated as "All".
func View(all []script.Script, f Filter) []script.Script {
	folder := f.Folder
	if strings.TrimSpace(folder) == "" {
		folder = script.AllFolders
	}
	return Sort(Search(FilterByFolder(all, folder), f.Query))
}

// Folders returns the "All" sentinel followed by each distinct folder in
// first-seen order. The set is recomputed with a full scan on every call,
// which is fine for personal libraries of a few thousand scripts.
func Folders(scripts []script.Script) []string {
	seen := make(map[string]bool, len(scripts))
	out := []string{script.AllFolders}
	for _, sc := range scripts {
		if sc.Folder == "" || seen[sc.Folder] {
			continue
		}
		seen[sc.Folder] = true
		out = append(out, sc.Folder)
	}
	return out
}

// SelectableFolders is Folders without the "All" sentinel, plus the default
// folder when the library does not contain it yet. It feeds the save
// dialog's folder picker.
func SelectableFolders(scripts []script.Script) []string {
	all := Folders(scripts)[1:]
	for _, f := range all {
		if f == script.DefaultFolder {
			return all
		}
	}
	return append([]string{script.DefaultFolder}, all...)
}
