package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/prompter/internal/errors"
)

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	ID      string  // optional; set to update an existing script
	Title   string  // required on create; empty keeps the current title on update
	Folder  string  // empty means "General" on create, unchanged on update
	Content *string // nil keeps the current content on update
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Folder    string `json:"folder"`
	Created   bool   `json:"created"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Save creates or updates a script through the save workflow.
func (l *Library) Save(ctx context.Context, input SaveInput) (*SaveOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := strings.TrimSpace(input.ID)
	content := ""
	if id != "" {
		existing, ok := l.store.Get(id)
		if !ok {
			return nil, errors.NewNotFound(id)
		}
		content = existing.Content
	}
	if input.Content != nil {
		content = *input.Content
	}

	wf := l.workflow()
	wf.OpenSave(id, input.Title, content)
	if id != "" && strings.TrimSpace(input.Title) != "" {
		if err := wf.SetTitle(input.Title); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(input.Folder) != "" {
		if err := wf.SetFolder(input.Folder); err != nil {
			return nil, err
		}
	}

	sc, err := wf.Confirm(ctx)
	if err != nil {
		return nil, err
	}

	return &SaveOutput{
		ID:        sc.ID,
		Title:     sc.Title,
		Folder:    sc.Folder,
		Created:   id == "",
		CreatedAt: sc.CreatedAt,
		UpdatedAt: sc.UpdatedAt,
	}, nil
}
