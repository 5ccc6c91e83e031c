package ops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hpungsan/prompter/internal/backup"
	"github.com/hpungsan/prompter/internal/config"
	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/pathcheck"
	"github.com/hpungsan/prompter/internal/script"
	"github.com/hpungsan/prompter/internal/session"
)

// BackupInput contains parameters for the Backup operation.
type BackupInput struct {
	Path   string // optional, default: ~/.prompter/exports/library-<timestamp>.<ext>
	Format string // jsonl (default) or yaml; inferred from Path when empty
}

// BackupOutput contains the result of the Backup operation.
type BackupOutput struct {
	Path       string        `json:"path"`
	Format     backup.Format `json:"format"`
	Count      int           `json:"count"`
	ExportedAt int64         `json:"exported_at"`
}

// Backup writes the whole library to a file.
func (l *Library) Backup(_ context.Context, input BackupInput) (*BackupOutput, error) {
	now := l.now()

	format, err := backupFormat(input)
	if err != nil {
		return nil, err
	}

	path := input.Path
	if path == "" {
		dir, err := config.ExportsDir()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		path = filepath.Join(dir, "library-"+now.Format("2006-01-02T150405")+format.Ext())
	}

	if err := pathcheck.ValidatePath(path, pathcheck.Write, backup.Extensions, l.cfg); err != nil {
		return nil, err
	}

	l.mu.Lock()
	scripts := l.store.Snapshot()
	l.mu.Unlock()

	err = pathcheck.WriteAtomic(path, func(w io.Writer) error {
		return backup.Encode(w, format, scripts, now)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("path", path).Int("count", len(scripts)).Msg("library backed up")
	return &BackupOutput{
		Path:       path,
		Format:     format,
		Count:      len(scripts),
		ExportedAt: now.Unix(),
	}, nil
}

func backupFormat(input BackupInput) (backup.Format, error) {
	if input.Path == "" {
		return backup.ParseFormat(input.Format)
	}
	fromPath, err := backup.FormatFromPath(input.Path)
	if err != nil {
		return "", err
	}
	if input.Format != "" {
		requested, err := backup.ParseFormat(input.Format)
		if err != nil {
			return "", err
		}
		if requested != fromPath {
			return "", errors.NewInvalidRequest(fmt.Sprintf("format %q does not match path extension %q", requested, filepath.Ext(input.Path)))
		}
	}
	return fromPath, nil
}

// ReplacePrompt is shown to the Confirmer before a replace restore.
const ReplacePrompt = "Replace the whole library with this backup? Scripts that are not in the backup will be deleted."

// RestoreInput contains parameters for the Restore operation.
type RestoreInput struct {
	Path string // required
	Mode string // merge (default) or replace

	// Confirm records consent to a replace collected up front (--yes,
	// confirm:true). It is ignored when Confirmer is set. Merge never asks.
	Confirm bool

	// Confirmer asks interactively before a replace.
	Confirmer session.Confirmer
}

// RestoreOutput contains the result of the Restore operation.
type RestoreOutput struct {
	Mode     backup.Mode `json:"mode"`
	Restored int         `json:"restored"`
	Skipped  int         `json:"skipped"`
	Total    int         `json:"total"`

	// Added lists restored ids that were not in the library before,
	// including scripts that had been deleted since the backup.
	Added []string `json:"added"`

	Errors []backup.LineError `json:"errors"`
}

// Restore reads a backup and merges it into, or replaces, the library.
// Bad records are skipped and reported; the rest are written in one
// replace, so a failed write leaves the library as it was.
//
// Replace deletes every script missing from the backup, so it needs
// consent like Delete and returns DESTRUCTIVE_ACTION_UNCONFIRMED without
// it. A replace whose backup has no valid record at all is refused.
func (l *Library) Restore(ctx context.Context, input RestoreInput) (*RestoreOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	mode, err := backup.ParseMode(input.Mode)
	if err != nil {
		return nil, err
	}
	format, err := backup.FormatFromPath(input.Path)
	if err != nil {
		return nil, err
	}
	if err := pathcheck.ValidatePath(input.Path, pathcheck.Read, backup.Extensions, l.cfg); err != nil {
		return nil, err
	}

	f, err := pathcheck.OpenRead(input.Path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open backup: %w", err))
	}
	defer f.Close()

	incoming, lineErrs, err := backup.Decode(f, format)
	if err != nil {
		return nil, err
	}
	if lineErrs == nil {
		lineErrs = []backup.LineError{}
	}

	if mode == backup.ModeReplace {
		if len(incoming) == 0 && len(lineErrs) > 0 {
			return nil, errors.NewValidation("path", fmt.Sprintf(
				"backup has no valid scripts (%d skipped); refusing to replace the library", len(lineErrs)))
		}
		c := input.Confirmer
		if c == nil {
			confirmed := input.Confirm
			c = session.ConfirmFunc(func(string) bool { return confirmed })
		}
		if !c.Confirm(ReplacePrompt) {
			return nil, errors.NewUnconfirmed("replace restore", input.Path)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.store.Snapshot()
	added := newIDs(current, incoming)
	next := backup.Apply(current, incoming, mode)
	if err := l.store.Replace(ctx, next); err != nil {
		return nil, err
	}

	l.log.Info().Str("path", input.Path).Str("mode", string(mode)).Int("restored", len(incoming)).
		Int("added", len(added)).Int("skipped", len(lineErrs)).Msg("library restored")
	return &RestoreOutput{
		Mode:     mode,
		Restored: len(incoming),
		Skipped:  len(lineErrs),
		Total:    len(next),
		Added:    added,
		Errors:   lineErrs,
	}, nil
}

// newIDs returns the ids in incoming that current does not contain.
func newIDs(current, incoming []script.Script) []string {
	have := make(map[string]bool, len(current))
	for _, sc := range current {
		have[sc.ID] = true
	}
	out := []string{}
	for _, sc := range incoming {
		if !have[sc.ID] {
			out = append(out, sc.ID)
		}
	}
	return out
}
