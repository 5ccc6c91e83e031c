// Package store owns the persisted script collection. All access is
// whole-collection: Load reads the snapshot from a Slot, Replace writes the
// entire collection back with a single Put. Upsert and Remove are pure and
// return a new sequence for the caller to Replace.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/script"
)

// DefaultKey is the slot key holding the collection.
const DefaultKey = "savedScripts"

// Slot is a durable key-value slot. Put must replace the value atomically.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Diagnostic describes why Load fell back to an empty collection.
type Diagnostic struct {
	Key    string    `json:"key"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
	// Quarantine is the slot key the unreadable value was copied to, if any.
	Quarantine string `json:"quarantine,omitempty"`
}

// Store is the single source of truth for the script collection.
// The in-memory view is safe for concurrent readers; read-modify-write
// sequences must be serialized by the caller.
type Store struct {
	slot Slot
	key  string
	log  zerolog.Logger

	mu      sync.RWMutex
	scripts []script.Script
	diag    *Diagnostic
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the slot key (default "savedScripts").
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used for recovery diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a Store over slot. Call Load once at startup.
func New(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot: slot,
		key:  DefaultKey,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the slot key this store persists to.
func (s *Store) Key() string {
	return s.key
}

// Load reads the persisted snapshot and makes it the in-memory view.
// A missing slot yields an empty collection. An unreadable or invalid
// snapshot also yields an empty collection, records a Diagnostic, and
// copies the raw value aside so a later Replace cannot destroy it.
// Load never returns an error.
func (s *Store) Load(ctx context.Context) []script.Script {
	raw, ok, err := s.slot.Get(ctx, s.key)

	var (
		scripts []script.Script
		diag    *Diagnostic
	)
	switch {
	case err != nil:
		diag = s.diagnose(fmt.Sprintf("read failed: %v", err))
	case !ok:
		// first run
	default:
		scripts, err = decode(raw)
		if err != nil {
			diag = s.diagnose(err.Error())
			diag.Quarantine = s.quarantine(ctx, raw)
		}
	}
	if scripts == nil {
		scripts = []script.Script{}
	}

	s.mu.Lock()
	s.scripts = scripts
	s.diag = diag
	s.mu.Unlock()

	return clone(scripts)
}

// Replace overwrites the persisted snapshot with scripts, then swaps the
// in-memory view. A collection Load would reject is refused with
// VALIDATION_ERROR before anything is written. If the write fails the
// in-memory view is left unchanged.
func (s *Store) Replace(ctx context.Context, scripts []script.Script) error {
	if scripts == nil {
		scripts = []script.Script{}
	}
	if i, err := validateAll(scripts); err != nil {
		return errors.NewValidation("scripts", fmt.Sprintf("record %d: %v", i, err))
	}
	data, err := json.Marshal(scripts)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := s.slot.Put(ctx, s.key, data); err != nil {
		return err
	}

	s.mu.Lock()
	s.scripts = clone(scripts)
	s.mu.Unlock()

	s.log.Debug().Str("key", s.key).Int("count", len(scripts)).Msg("collection replaced")
	return nil
}

// Upsert returns the current collection with sc replacing the script that
// has the same ID, or appended if there is none. Nothing is persisted.
func (s *Store) Upsert(sc script.Script) []script.Script {
	return Upsert(s.Snapshot(), sc)
}

// Remove returns the current collection without the script named by id.
// Nothing is persisted.
func (s *Store) Remove(id string) []script.Script {
	return Remove(s.Snapshot(), id)
}

// Snapshot returns a copy of the in-memory view.
func (s *Store) Snapshot() []script.Script {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.scripts)
}

// Get returns the loaded script with the given id.
func (s *Store) Get(id string) (script.Script, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.scripts {
		if sc.ID == id {
			return sc, true
		}
	}
	return script.Script{}, false
}

// LastDiagnostic returns the diagnostic from the most recent Load, or nil.
func (s *Store) LastDiagnostic() *Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.diag == nil {
		return nil
	}
	d := *s.diag
	return &d
}

// Upsert replaces the element of scripts whose ID matches sc, or appends sc.
// The input slice is never modified.
func Upsert(scripts []script.Script, sc script.Script) []script.Script {
	out := make([]script.Script, 0, len(scripts)+1)
	replaced := false
	for _, existing := range scripts {
		if existing.ID == sc.ID {
			out = append(out, sc)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, sc)
	}
	return out
}

// Remove drops the element of scripts whose ID matches id.
// When no element matches, scripts itself is returned.
func Remove(scripts []script.Script, id string) []script.Script {
	idx := -1
	for i, sc := range scripts {
		if sc.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return scripts
	}
	out := make([]script.Script, 0, len(scripts)-1)
	out = append(out, scripts[:idx]...)
	return append(out, scripts[idx+1:]...)
}

// decode parses a persisted snapshot, defaulting folders and rejecting
// records that break the data-model invariants.
func decode(raw []byte) ([]script.Script, error) {
	var scripts []script.Script
	if err := json.Unmarshal(raw, &scripts); err != nil {
		return nil, fmt.Errorf("malformed snapshot: %w", err)
	}

	if i, err := validateAll(scripts); err != nil {
		return nil, fmt.Errorf("invalid record %d: %w", i, err)
	}
	for i := range scripts {
		scripts[i].Folder = script.NormalizeFolder(scripts[i].Folder)
	}
	return scripts, nil
}

// validateAll checks every record and that ids are unique. On failure it
// returns the index of the first bad record.
func validateAll(scripts []script.Script) (int, error) {
	seen := make(map[string]bool, len(scripts))
	for i, sc := range scripts {
		if err := script.Validate(sc); err != nil {
			return i, err
		}
		if seen[sc.ID] {
			return i, fmt.Errorf("duplicate id %s", sc.ID)
		}
		seen[sc.ID] = true
	}
	return 0, nil
}

func (s *Store) diagnose(reason string) *Diagnostic {
	s.log.Warn().Str("key", s.key).Str("reason", reason).Msg("script library unreadable, starting empty")
	return &Diagnostic{Key: s.key, Reason: reason, At: time.Now()}
}

// quarantine copies an unreadable value to a side key. Best-effort.
func (s *Store) quarantine(ctx context.Context, raw []byte) string {
	key := fmt.Sprintf("%s.corrupt.%d", s.key, time.Now().UnixMilli())
	if err := s.slot.Put(ctx, key, raw); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to quarantine unreadable library")
		return ""
	}
	s.log.Info().Str("key", key).Msg("unreadable library copied aside")
	return key
}

func clone(scripts []script.Script) []script.Script {
	out := make([]script.Script, len(scripts))
	copy(out, scripts)
	return out
}
