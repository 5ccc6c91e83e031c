package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/script"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string
}

// FetchOutput is a full script plus derived counts.
type FetchOutput struct {
	script.Script
	Chars int `json:"chars"`
	Words int `json:"words"`
}

// Fetch retrieves a single script by id.
func (l *Library) Fetch(_ context.Context, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	l.mu.Lock()
	sc, ok := l.store.Get(id)
	l.mu.Unlock()
	if !ok {
		return nil, errors.NewNotFound(id)
	}

	return &FetchOutput{
		Script: sc,
		Chars:  script.CountChars(sc.Content),
		Words:  script.CountWords(sc.Content),
	}, nil
}
