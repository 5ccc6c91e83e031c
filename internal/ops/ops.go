// Package ops is the request/response surface shared by the CLI, the MCP
// server, and the web UI. Each operation takes an XInput and returns an
// *XOutput ready to be rendered as JSON.
package ops

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/config"
	"github.com/hpungsan/prompter/internal/db"
	"github.com/hpungsan/prompter/internal/session"
	"github.com/hpungsan/prompter/internal/store"
	"github.com/hpungsan/prompter/internal/workflow"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Library owns the script collection and the interactive session for one
// process. Operations run one at a time: every whole-collection
// read-modify-write happens under mu.
type Library struct {
	mu      sync.Mutex
	store   *store.Store
	session *session.Session
	cfg     *config.Config
	log     zerolog.Logger
	now     func() time.Time
	newID   func() (string, error)
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Library) { l.log = log }
}

// WithClock overrides the time source used for timestamps and backup names.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// WithIDGenerator overrides script id generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(l *Library) { l.newID = gen }
}

// Open loads the library stored in database under cfg.StorageKey.
// An unreadable library opens empty; see Diagnostic.
func Open(ctx context.Context, database *sql.DB, cfg *config.Config, opts ...Option) *Library {
	l := newLibrary(cfg, opts)
	l.store = store.New(db.NewSlot(database), store.WithKey(l.cfg.StorageKey), store.WithLogger(l.log))
	l.store.Load(ctx)
	l.init()
	return l
}

// New wraps an already loaded store.
func New(st *store.Store, cfg *config.Config, opts ...Option) *Library {
	l := newLibrary(cfg, opts)
	l.store = st
	l.init()
	return l
}

func newLibrary(cfg *config.Config, opts []Option) *Library {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	l := &Library{
		cfg:   cfg,
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: workflow.NewID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Library) init() {
	l.session = session.New(l.store, l.cfg,
		session.WithWorkflow(l.workflow()),
		session.WithLogger(l.log),
	)
}

func (l *Library) workflow() *workflow.Workflow {
	return workflow.New(l.store,
		workflow.WithClock(l.now),
		workflow.WithIDGenerator(l.newID),
		workflow.WithLogger(l.log),
	)
}

// Config returns the configuration the library was opened with.
func (l *Library) Config() *config.Config {
	return l.cfg
}

// Diagnostic reports why the stored library could not be read at load
// time, or nil.
func (l *Library) Diagnostic() *store.Diagnostic {
	return l.store.LastDiagnostic()
}

// Session runs fn with exclusive access to the interactive session (the
// viewer's working buffer and save dialog).
func (l *Library) Session(fn func(s *session.Session) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.session)
}
