package web

import (
	stderrors "errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/export"
	"github.com/hpungsan/prompter/internal/ops"
	"github.com/hpungsan/prompter/internal/script"
	"github.com/hpungsan/prompter/internal/session"
	"github.com/hpungsan/prompter/internal/upload"
	"github.com/hpungsan/prompter/internal/workflow"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	lib      *ops.Library
	renderer *Renderer
}

// HandleList handles GET /scripts, the library view. Visiting the library
// is the viewer's return-to-home signal.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = script.AllFolders
	}
	q := r.URL.Query().Get("q")

	result, err := h.lib.List(r.Context(), ops.ListInput{
		Folder: folder,
		Query:  q,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	folders, err := h.lib.Folders(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var buf session.Buffer
	_ = h.lib.Session(func(s *session.Session) error {
		s.Home()
		buf = s.Buffer()
		return nil
	})

	data := ListPageData{
		PageData:   h.renderer.page("Library", "library"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Folders:    folders.Folders,
		Folder:     folder,
		Query:      q,
		Buffer:     buf,
	}
	if result.Diagnostic != nil {
		data.Diagnostic = result.Diagnostic.Reason
	}
	h.renderer.renderPage(w, r, "list", data)
}

// HandleDetail handles GET /scripts/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("script ID is required"))
		return
	}

	sc, err := h.lib.Fetch(r.Context(), ops.FetchInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, sc)
		return
	}

	data := DetailPageData{
		PageData: h.renderer.page(sc.Title, "library"),
		Script:   sc,
	}
	if r.URL.Query().Get("preview") == "markdown" {
		data.Preview = renderMarkdown(sc.Content)
	}
	h.renderer.renderPage(w, r, "detail", data)
}

// HandleExport handles GET /scripts/{id}/export and downloads "<title>.txt".
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.lib.Export(r.Context(), ops.ExportInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": out.Name})
	if disposition == "" {
		// Titles with characters a header cannot carry fall back to the
		// sanitized on-disk name.
		disposition = mime.FormatMediaType("attachment", map[string]string{
			"filename": export.Artifact{Name: out.Name}.FileName(),
		})
	}
	w.Header().Set("Content-Type", out.MediaType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(out.Bytes))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.Content))
}

// HandleDelete handles DELETE /scripts/{id} and POST /scripts/{id}/delete.
// The request must carry confirm=yes (query or form).
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("script ID is required"))
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := h.lib.Delete(r.Context(), ops.DeleteInput{
		ID:      id,
		Confirm: r.FormValue("confirm") == "yes",
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/scripts")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/scripts", http.StatusSeeOther)
}

// HandleOpenSave handles GET /save, the viewer's save signal. The dialog
// is seeded from the working buffer.
func (h *Handlers) HandleOpenSave(w http.ResponseWriter, r *http.Request) {
	var draft workflow.Draft
	_ = h.lib.Session(func(s *session.Session) error {
		draft = s.RequestSave()
		return nil
	})
	h.renderSave(w, r, http.StatusOK, draft, "")
}

// HandleSave handles POST /scripts and confirms the save dialog.
func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	var (
		saved script.Script
		draft workflow.Draft
	)
	err := h.lib.Session(func(s *session.Session) error {
		wf := s.Workflow()
		if wf.State() != workflow.StateEditing {
			// Posted without opening the dialog first (e.g. a JSON client).
			s.RequestSave()
		}
		if r.Form.Has("content") {
			if err := wf.SetContent(r.FormValue("content")); err != nil {
				return err
			}
		}
		if r.Form.Has("title") {
			if err := wf.SetTitle(r.FormValue("title")); err != nil {
				return err
			}
		}
		if r.Form.Has("folder") {
			if err := wf.SetFolder(r.FormValue("folder")); err != nil {
				return err
			}
		}
		if err := wf.CreateFolder(r.FormValue("new_folder")); err != nil {
			return err
		}
		draft = wf.Draft()

		var err error
		saved, err = s.CompleteSave(r.Context())
		return err
	})
	if err != nil {
		if errors.Is(err, errors.ErrValidation) && !wantsJSON(r) {
			var pErr *errors.PrompterError
			stderrors.As(err, &pErr)
			h.renderSave(w, r, http.StatusUnprocessableEntity, draft, pErr.Message)
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, saved)
		return
	}
	http.Redirect(w, r, "/scripts/"+url.PathEscape(saved.ID), http.StatusSeeOther)
}

// HandleCancelSave handles POST /save/cancel.
func (h *Handlers) HandleCancelSave(w http.ResponseWriter, r *http.Request) {
	_ = h.lib.Session(func(s *session.Session) error {
		s.Workflow().Cancel()
		return nil
	})
	http.Redirect(w, r, "/viewer", http.StatusSeeOther)
}

func (h *Handlers) renderSave(w http.ResponseWriter, r *http.Request, status int, d workflow.Draft, msg string) {
	folders, err := h.lib.Folders(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	choices := folders.Selectable
	if d.Folder != "" && !contains(choices, d.Folder) {
		choices = append(choices, d.Folder)
	}
	h.renderer.renderPageStatus(w, r, status, "save", SavePageData{
		PageData:   h.renderer.page("Save script", "viewer"),
		Title:      d.Title,
		Folder:     d.Folder,
		Folders:    choices,
		ExistingID: d.ExistingID,
		Error:      msg,
	})
}

// HandleViewer handles GET /viewer. With ?id= it loads that script into the
// buffer first; speed and font_size override the playback defaults.
func (h *Handlers) HandleViewer(w http.ResponseWriter, r *http.Request) {
	var (
		v   session.ViewerRequest
		buf session.Buffer
	)
	err := h.lib.Session(func(s *session.Session) error {
		s.SetPlayback(parseIntParam(r, "speed", 0), parseIntParam(r, "font_size", 0))
		var err error
		if id := r.URL.Query().Get("id"); id != "" {
			v, err = s.LoadScript(id)
		} else {
			v, err = s.Play()
		}
		buf = s.Buffer()
		return err
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, v)
		return
	}

	h.renderer.renderPage(w, r, "viewer", ViewerPageData{
		PageData:  h.renderer.page(v.Title, "viewer"),
		Viewer:    v,
		CurrentID: buf.CurrentID,
	})
}

// HandleText handles POST /viewer/text. Pasted text replaces the buffer.
func (h *Handlers) HandleText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	err := h.lib.Session(func(s *session.Session) error {
		s.SetText(r.FormValue("content"))
		_, err := s.Play()
		return err
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/viewer", http.StatusSeeOther)
}

// HandleUpload handles POST /upload with a multipart "file" field.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+1<<20)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("file is required"))
		return
	}
	defer file.Close()

	var v session.ViewerRequest
	err = h.lib.Session(func(s *session.Session) error {
		var err error
		v, err = s.Upload(hdr.Filename, file)
		return err
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, v)
		return
	}
	http.Redirect(w, r, "/viewer", http.StatusSeeOther)
}

// HandleFolders handles GET /folders (JSON only).
func (h *Handlers) HandleFolders(w http.ResponseWriter, r *http.Request) {
	out, err := h.lib.Folders(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// folderLink builds the library URL for a folder filter, keeping the query.
func folderLink(folder, q string) string {
	v := url.Values{}
	if folder != "" && folder != script.AllFolders {
		v.Set("folder", folder)
	}
	if strings.TrimSpace(q) != "" {
		v.Set("q", q)
	}
	if len(v) == 0 {
		return "/scripts"
	}
	return "/scripts?" + v.Encode()
}
