package ops

import (
	"context"

	"github.com/hpungsan/prompter/internal/query"
	"github.com/hpungsan/prompter/internal/script"
	"github.com/hpungsan/prompter/internal/store"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Folder string // "All" or empty for every folder
	Query  string // case-insensitive title/content substring
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []script.Summary  `json:"items"`
	Pagination Pagination        `json:"pagination"`
	Folder     string            `json:"folder"`
	Query      string            `json:"query,omitempty"`
	Sort       string            `json:"sort"`
	Diagnostic *store.Diagnostic `json:"diagnostic,omitempty"`
}

// List returns the library view: folder filter, then search, then sort by
// most recently updated, then the requested page.
func (l *Library) List(_ context.Context, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	folder := input.Folder
	if folder == "" {
		folder = script.AllFolders
	}

	l.mu.Lock()
	view := query.View(l.store.Snapshot(), query.Filter{Folder: folder, Query: input.Query})
	l.mu.Unlock()

	total := len(view)
	start := min(offset, total)
	end := min(start+limit, total)

	items := make([]script.Summary, 0, end-start)
	for _, sc := range view[start:end] {
		items = append(items, script.Summarize(sc))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: end < total,
			Total:   total,
		},
		Folder:     folder,
		Query:      input.Query,
		Sort:       "updated_at_desc",
		Diagnostic: l.store.LastDiagnostic(),
	}, nil
}

// FolderCount is one entry of the folder filter.
type FolderCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FoldersOutput contains the result of the Folders operation.
type FoldersOutput struct {
	// Folders starts with "All" (every script), then each folder in
	// first-seen order.
	Folders []FolderCount `json:"folders"`

	// Selectable is what the save dialog offers; it never contains "All".
	Selectable []string `json:"selectable"`
}

// Folders returns the derived folder set with per-folder counts.
func (l *Library) Folders(_ context.Context) (*FoldersOutput, error) {
	l.mu.Lock()
	all := l.store.Snapshot()
	l.mu.Unlock()

	counts := make(map[string]int)
	for _, sc := range all {
		counts[sc.Folder]++
	}

	names := query.Folders(all)
	out := &FoldersOutput{
		Folders:    make([]FolderCount, 0, len(names)),
		Selectable: query.SelectableFolders(all),
	}
	for _, name := range names {
		n := counts[name]
		if name == script.AllFolders {
			n = len(all)
		}
		out.Folders = append(out.Folders, FolderCount{Name: name, Count: n})
	}
	return out, nil
}
