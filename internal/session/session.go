// Package session holds the working buffer shared by the library and the
// viewer, and turns viewer signals into library operations.
//
// A Session is not safe for concurrent use. Callers handle one event at a
// time (ops.Library serializes them).
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/config"
	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/script"
	"github.com/hpungsan/prompter/internal/store"
	"github.com/hpungsan/prompter/internal/upload"
	"github.com/hpungsan/prompter/internal/workflow"
)

const (
	// StartupTitle is the working title after startup content loads.
	StartupTitle = "Default Speech"

	// Placeholder replaces startup content that could not be loaded.
	Placeholder = "Welcome to MyTeleprompter! Upload or paste your speech to get started."

	// DeletePrompt is shown to the Confirmer before a script is removed.
	DeletePrompt = "Are you sure you want to delete this script?"
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Always is a Confirmer for callers that already collected consent, such as
// a --yes flag or a confirm:true request field.
var Always Confirmer = ConfirmFunc(func(string) bool { return true })

// Buffer is the text currently loaded for playback.
type Buffer struct {
	Content   string `json:"content"`
	Title     string `json:"title"`
	CurrentID string `json:"current_id,omitempty"` // saved script the buffer came from
}

// ViewerRequest is everything the viewer needs to start playback.
type ViewerRequest struct {
	Content  string `json:"content"`
	Title    string `json:"title"`
	Speed    int    `json:"speed"`
	FontSize int    `json:"font_size"`
}

// Session is the state behind one user's library and viewer.
type Session struct {
	store  *store.Store
	wf     *workflow.Workflow
	client *http.Client
	log    zerolog.Logger

	buf      Buffer
	speed    int
	fontSize int
	viewing  bool
}

// Option configures a Session.
type Option func(*Session)

// WithWorkflow replaces the default save workflow.
func WithWorkflow(wf *workflow.Workflow) Option {
	return func(s *Session) { s.wf = wf }
}

// WithHTTPClient sets the client used for URL startup content.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New creates a session over st. Playback defaults come from cfg.
func New(st *store.Store, cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		store:    st,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      zerolog.Nop(),
		speed:    cfg.DefaultSpeed,
		fontSize: cfg.DefaultFontSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.wf == nil {
		s.wf = workflow.New(st, workflow.WithLogger(s.log))
	}
	return s
}

// Buffer returns the working buffer.
func (s *Session) Buffer() Buffer { return s.buf }

// Workflow exposes the save dialog for title and folder edits.
func (s *Session) Workflow() *workflow.Workflow { return s.wf }

// Viewing reports whether the viewer is showing the buffer.
func (s *Session) Viewing() bool { return s.viewing }

// LoadStartupContent seeds the buffer from source, a file path or an
// http(s) URL. The buffer is always usable afterwards: on failure it holds
// Placeholder and the returned error only says why.
func (s *Session) LoadStartupContent(ctx context.Context, source string) error {
	text, err := s.fetch(ctx, source)
	if err != nil {
		s.log.Warn().Err(err).Str("source", source).Msg("startup content unavailable")
		s.buf = Buffer{Content: Placeholder}
		return err
	}
	s.buf = Buffer{Content: text, Title: StartupTitle}
	return nil
}

func (s *Session) fetch(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("no startup content configured")
	}

	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("GET %s: %s", source, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, upload.MaxSize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Viewer builds the request handed to the viewer. An empty title falls
// back to "My Speech".
func (s *Session) Viewer() ViewerRequest {
	title := s.buf.Title
	if title == "" {
		title = script.DefaultTitle
	}
	return ViewerRequest{
		Content:  s.buf.Content,
		Title:    title,
		Speed:    s.speed,
		FontSize: s.fontSize,
	}
}

// SetPlayback overrides speed and font size. Non-positive values are ignored.
func (s *Session) SetPlayback(speed, fontSize int) {
	if speed > 0 {
		s.speed = speed
	}
	if fontSize > 0 {
		s.fontSize = fontSize
	}
}

// SetText replaces the buffer content with pasted text.
func (s *Session) SetText(content string) {
	s.buf.Content = content
}

// Play starts the viewer on the current buffer. Blank content is refused.
func (s *Session) Play() (ViewerRequest, error) {
	if strings.TrimSpace(s.buf.Content) == "" {
		return ViewerRequest{}, errors.NewEmptyContent()
	}
	s.viewing = true
	return s.Viewer(), nil
}

// Home handles the viewer's return-to-library signal.
func (s *Session) Home() {
	s.viewing = false
}

// Upload handles the viewer's upload signal. The accepted file replaces the
// buffer and detaches it from any saved script. On error the buffer is left
// unchanged.
func (s *Session) Upload(name string, r io.Reader) (ViewerRequest, error) {
	res, err := upload.FromReader(name, r)
	if err != nil {
		return ViewerRequest{}, err
	}
	s.UseUpload(res)
	return s.Viewer(), nil
}

// UseUpload installs an already accepted upload.
func (s *Session) UseUpload(res *upload.Result) {
	s.buf = Buffer{Content: res.Content, Title: res.Name}
	s.viewing = true
}

// LoadScript puts a saved script into the buffer and opens the viewer.
func (s *Session) LoadScript(id string) (ViewerRequest, error) {
	sc, ok := s.store.Get(id)
	if !ok {
		return ViewerRequest{}, errors.NewNotFound(id)
	}
	s.buf = Buffer{Content: sc.Content, Title: sc.Title, CurrentID: sc.ID}
	s.viewing = true
	return s.Viewer(), nil
}

// RequestSave handles the viewer's save signal by opening the save dialog
// on the buffer.
func (s *Session) RequestSave() workflow.Draft {
	s.wf.OpenSave(s.buf.CurrentID, s.buf.Title, s.buf.Content)
	return s.wf.Draft()
}

// CompleteSave confirms the save dialog. On success the buffer is attached
// to the saved script and takes its title.
func (s *Session) CompleteSave(ctx context.Context) (script.Script, error) {
	sc, err := s.wf.Confirm(ctx)
	if err != nil {
		return script.Script{}, err
	}
	s.buf.CurrentID = sc.ID
	s.buf.Title = sc.Title
	return sc, nil
}

// Delete removes a script after c approves DeletePrompt. A declined (or
// missing) confirmation returns DESTRUCTIVE_ACTION_UNCONFIRMED and leaves
// the collection untouched. Deleting the script the buffer came from
// detaches the buffer; its text stays.
func (s *Session) Delete(ctx context.Context, id string, c Confirmer) error {
	if _, ok := s.store.Get(id); !ok {
		return errors.NewNotFound(id)
	}
	if c == nil || !c.Confirm(DeletePrompt) {
		return errors.NewUnconfirmed("delete", id)
	}
	if err := s.store.Replace(ctx, s.store.Remove(id)); err != nil {
		return err
	}
	if s.buf.CurrentID == id {
		s.buf.CurrentID = ""
	}
	s.log.Info().Str("script_id", id).Msg("script deleted")
	return nil
}
