package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/export"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	ID    string
	Write bool   // write a file; otherwise the content is returned inline
	Dir   string // optional with Write, default: ~/.prompter/exports
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Bytes     int    `json:"bytes"`
	Path      string `json:"path,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Export produces the "<title>.txt" artifact for a script, either written
// to disk or returned inline.
func (l *Library) Export(_ context.Context, input ExportInput) (*ExportOutput, error) {
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

	a := export.ExportScript(sc)
	out := &ExportOutput{
		ID:        sc.ID,
		Name:      a.Name,
		MediaType: a.MediaType,
		Bytes:     len(a.Content),
	}

	if !input.Write {
		out.Content = string(a.Content)
		return out, nil
	}

	path, err := export.WriteFile(a, input.Dir, l.cfg)
	if err != nil {
		return nil, err
	}
	out.Path = path
	l.log.Info().Str("script_id", sc.ID).Str("path", path).Msg("script exported")
	return out, nil
}
