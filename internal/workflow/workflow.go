// Package workflow implements the save dialog: a single in-flight draft that
// is either confirmed into the library (create or update) or cancelled.
package workflow

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/script"
)

// State is the workflow state.
type State string

const (
	StateIdle    State = "idle"
	StateEditing State = "editing"
)

// Store is the subset of store.Store the workflow persists through.
type Store interface {
	Get(id string) (script.Script, bool)
	Upsert(sc script.Script) []script.Script
	Replace(ctx context.Context, scripts []script.Script) error
}

// Draft is the transient edit state between OpenSave and Confirm/Cancel.
type Draft struct {
	ExistingID string `json:"existing_id,omitempty"` // set when editing a loaded script
	Title      string `json:"title"`
	Folder     string `json:"folder"`
	Content    string `json:"-"`
}

// Workflow coordinates one create-or-update edit at a time.
type Workflow struct {
	store Store
	now   func() time.Time
	newID func() (string, error)
	log   zerolog.Logger

	state State
	draft Draft
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithIDGenerator overrides ULID generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(w *Workflow) { w.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Workflow) { w.log = log }
}

// New creates an idle Workflow persisting through store.
func New(store Store, opts ...Option) *Workflow {
	w := &Workflow{
		store: store,
		now:   time.Now,
		newID: NewID,
		log:   zerolog.Nop(),
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current state.
func (w *Workflow) State() State {
	return w.state
}

// Draft returns a copy of the draft. Only meaningful while editing.
func (w *Workflow) Draft() Draft {
	return w.draft
}

// OpenSave enters Editing. When existingID names a loaded script the draft
// title and folder are seeded from it; otherwise the title is workingTitle
// (possibly empty) and the folder is "General". An existingID that is not
// loaded is treated as a new script. content is the text being saved.
// Opening while already editing discards the previous draft.
func (w *Workflow) OpenSave(existingID, workingTitle, content string) {
	d := Draft{
		Title:   workingTitle,
		Folder:  script.DefaultFolder,
		Content: content,
	}
	if existingID != "" {
		if sc, ok := w.store.Get(existingID); ok {
			d.ExistingID = sc.ID
			d.Title = sc.Title
			d.Folder = sc.Folder
		}
	}
	w.draft = d
	w.state = StateEditing
}

// SetTitle replaces the draft title. No validation until Confirm.
func (w *Workflow) SetTitle(title string) error {
	if w.state != StateEditing {
		return errors.NewNotEditing()
	}
	w.draft.Title = title
	return nil
}

// SetFolder replaces the draft folder.
func (w *Workflow) SetFolder(folder string) error {
	if w.state != StateEditing {
		return errors.NewNotEditing()
	}
	w.draft.Folder = folder
	return nil
}

// SetContent replaces the text being saved.
func (w *Workflow) SetContent(content string) error {
	if w.state != StateEditing {
		return errors.NewNotEditing()
	}
	w.draft.Content = content
	return nil
}

// CreateFolder selects a new folder for the draft. Blank names are ignored.
// Folders exist only as values on scripts, so nothing is persisted here.
func (w *Workflow) CreateFolder(name string) error {
	if w.state != StateEditing {
		return errors.NewNotEditing()
	}
	if strings.TrimSpace(name) == "" {
		return nil
	}
	w.draft.Folder = name
	return nil
}

// Confirm validates the draft and persists it. A blank title returns a
// VALIDATION_ERROR and leaves the workflow Editing. A persistence failure
// also leaves it Editing so the user can retry. On success the workflow
// returns to Idle and the saved script is returned.
func (w *Workflow) Confirm(ctx context.Context) (script.Script, error) {
	if w.state != StateEditing {
		return script.Script{}, errors.NewNotEditing()
	}
	if strings.TrimSpace(w.draft.Title) == "" {
		return script.Script{}, errors.NewValidation("title", "please enter a title for your script")
	}

	now := script.Millis(w.now())
	sc := script.Script{
		Title:     w.draft.Title,
		Content:   w.draft.Content,
		Folder:    script.NormalizeFolder(w.draft.Folder),
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, ok := script.Script{}, false
	if w.draft.ExistingID != "" {
		existing, ok = w.store.Get(w.draft.ExistingID)
	}
	if ok {
		sc.ID = existing.ID
		sc.CreatedAt = existing.CreatedAt
		// Clock skew must not break updatedAt >= createdAt.
		if sc.UpdatedAt < sc.CreatedAt {
			sc.UpdatedAt = sc.CreatedAt
		}
	} else {
		id, err := w.newID()
		if err != nil {
			return script.Script{}, errors.NewInternal(err)
		}
		sc.ID = id
	}

	if err := w.store.Replace(ctx, w.store.Upsert(sc)); err != nil {
		w.log.Error().Err(err).Str("script_id", sc.ID).Msg("save failed")
		return script.Script{}, err
	}

	w.log.Info().Str("script_id", sc.ID).Str("folder", sc.Folder).Bool("created", !ok).Msg("script saved")
	w.reset()
	return sc, nil
}

// Cancel discards the draft without persisting anything.
func (w *Workflow) Cancel() {
	w.reset()
}

func (w *Workflow) reset() {
	w.draft = Draft{}
	w.state = StateIdle
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a ULID. Monotonic entropy keeps ids generated within the
// same millisecond distinct and ordered.
func NewID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
