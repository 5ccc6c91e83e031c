package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/session"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string

	// Confirm records consent collected up front (--yes, confirm:true,
	// confirm=yes). It is ignored when Confirmer is set.
	Confirm bool

	// Confirmer asks interactively, e.g. a terminal prompt.
	Confirmer session.Confirmer
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete permanently removes a script. Without confirmation it returns
// DESTRUCTIVE_ACTION_UNCONFIRMED and the library is unchanged.
func (l *Library) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	c := input.Confirmer
	if c == nil {
		confirmed := input.Confirm
		c = session.ConfirmFunc(func(string) bool { return confirmed })
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.session.Delete(ctx, id, c); err != nil {
		return nil, err
	}

	return &DeleteOutput{
		Deleted: true,
		ID:      id,
	}, nil
}
