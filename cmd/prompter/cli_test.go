package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/config"
	"github.com/hpungsan/prompter/internal/db"
	"github.com/hpungsan/prompter/internal/ops"
	"github.com/hpungsan/prompter/internal/session"
)

// setupTestLib opens a library on a temporary database.
func setupTestLib(t *testing.T) *ops.Library {
	t.Helper()
	t.Setenv("PROMPTER_HOME", t.TempDir())

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return ops.Open(context.Background(), database, cfg)
}

// run executes the CLI with stdin and returns stdout.
func run(t *testing.T, lib *ops.Library, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(lib, zerolog.Nop())
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"prompter"}, args...))
	return out.String(), err
}

func mustRun(t *testing.T, lib *ops.Library, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, lib, stdin, args...)
	if err != nil {
		t.Fatalf("prompter %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, s)
	}
	return v
}

func TestCLISave(t *testing.T) {
	lib := setupTestLib(t)

	out := decodeJSON[ops.SaveOutput](t, mustRun(t, lib, "Hello world\n", "save", "--title=Keynote", "--folder=Work"))
	if out.ID == "" {
		t.Error("expected non-empty ID")
	}
	if !out.Created || out.Folder != "Work" {
		t.Errorf("output = %+v", out)
	}

	fetched, err := lib.Fetch(context.Background(), ops.FetchInput{ID: out.ID})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fetched.Content != "Hello world\n" {
		t.Errorf("content = %q, want verbatim stdin", fetched.Content)
	}

	// Update the title only; empty stdin leaves content alone.
	updated := decodeJSON[ops.SaveOutput](t, mustRun(t, lib, "", "save", "--id="+out.ID, "--title=Keynote v2"))
	if updated.Created || updated.ID != out.ID || updated.Title != "Keynote v2" {
		t.Errorf("update output = %+v", updated)
	}
	fetched, _ = lib.Fetch(context.Background(), ops.FetchInput{ID: out.ID})
	if fetched.Content != "Hello world\n" || fetched.Folder != "Work" {
		t.Errorf("after update = %+v", fetched.Script)
	}
}

func TestCLISave_Errors(t *testing.T) {
	lib := setupTestLib(t)

	t.Run("no content", func(t *testing.T) {
		_, err := run(t, lib, "", "save", "--title=x")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("err = %v, want INVALID_REQUEST", err)
		}
	})

	t.Run("no title", func(t *testing.T) {
		_, err := run(t, lib, "text", "save")
		if err == nil || !strings.Contains(err.Error(), "VALIDATION_ERROR") {
			t.Errorf("err = %v, want VALIDATION_ERROR", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := run(t, lib, "text", "save", "--id=01NOPE")
		if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
			t.Errorf("err = %v, want NOT_FOUND", err)
		}
	})
}

func TestCLIShow(t *testing.T) {
	lib := setupTestLib(t)
	saved := decodeJSON[ops.SaveOutput](t, mustRun(t, lib, "one two three", "save", "--title=Talk"))

	out := decodeJSON[ops.FetchOutput](t, mustRun(t, lib, "", "show", saved.ID))
	if out.Title != "Talk" || out.Words != 3 || out.Chars != 13 {
		t.Errorf("show = %+v", out)
	}

	if _, err := run(t, lib, "", "show", "01NOPE"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestCLIList(t *testing.T) {
	lib := setupTestLib(t)
	mustRun(t, lib, "Hello world", "save", "--title=Keynote", "--folder=Work")
	mustRun(t, lib, "hello again", "save", "--title=Review", "--folder=Work")
	mustRun(t, lib, "Raise your glasses", "save", "--title=Toast", "--folder=Personal")

	tests := []struct {
		name  string
		args  []string
		count int
		total int
	}{
		{"all", []string{"list"}, 3, 3},
		{"folder", []string{"list", "--folder=Work"}, 2, 2},
		{"query", []string{"list", "-q", "GLASSES"}, 1, 1},
		{"limit", []string{"list", "--limit=1"}, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decodeJSON[ops.ListOutput](t, mustRun(t, lib, "", tt.args...))
			if len(out.Items) != tt.count {
				t.Errorf("items = %d, want %d", len(out.Items), tt.count)
			}
			if out.Pagination.Total != tt.total {
				t.Errorf("total = %d, want %d", out.Pagination.Total, tt.total)
			}
		})
	}
}

func TestCLIFolders(t *testing.T) {
	lib := setupTestLib(t)
	mustRun(t, lib, "x", "save", "--title=A", "--folder=Work")
	mustRun(t, lib, "y", "save", "--title=B")

	out := decodeJSON[ops.FoldersOutput](t, mustRun(t, lib, "", "folders"))
	if len(out.Folders) != 3 || out.Folders[0].Name != "All" || out.Folders[0].Count != 2 {
		t.Errorf("folders = %+v", out.Folders)
	}
}

func TestCLIDelete(t *testing.T) {
	lib := setupTestLib(t)
	saved := decodeJSON[ops.SaveOutput](t, mustRun(t, lib, "x", "save", "--title=Doomed"))

	t.Run("declined prompt", func(t *testing.T) {
		_, err := run(t, lib, "n\n", "delete", saved.ID)
		if err == nil || !strings.Contains(err.Error(), "DESTRUCTIVE_ACTION_UNCONFIRMED") {
			t.Errorf("err = %v, want DESTRUCTIVE_ACTION_UNCONFIRMED", err)
		}
	})

	t.Run("no answer", func(t *testing.T) {
		_, err := run(t, lib, "", "delete", saved.ID)
		if err == nil {
			t.Error("expected unconfirmed error")
		}
	})

	if _, err := lib.Fetch(context.Background(), ops.FetchInput{ID: saved.ID}); err != nil {
		t.Fatalf("script should survive declined deletes: %v", err)
	}

	t.Run("accepted prompt", func(t *testing.T) {
		out := decodeJSON[ops.DeleteOutput](t, mustRun(t, lib, "yes\n", "delete", saved.ID))
		if !out.Deleted {
			t.Error("expected deleted=true")
		}
	})

	t.Run("already gone", func(t *testing.T) {
		_, err := run(t, lib, "", "delete", "--yes", saved.ID)
		if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
			t.Errorf("err = %v, want NOT_FOUND", err)
		}
	})
}

func TestCLIDelete_Yes(t *testing.T) {
	lib := setupTestLib(t)
	saved := decodeJSON[ops.SaveOutput](t, mustRun(t, lib, "x", "save", "--title=Doomed"))

	mustRun(t, lib, "", "delete", "-y", saved.ID)
	if _, err := lib.Fetch(context.Background(), ops.FetchInput{ID: saved.ID}); err == nil {
		t.Error("script should be deleted")
	}
}

func TestCLIExport(t *testing.T) {
	lib := setupTestLib(t)
	saved := decodeJSON[ops.SaveOutput](t, mustRun(t, lib, "Good morning everyone.", "save", "--title=Keynote"))

	if out := mustRun(t, lib, "", "export", "--stdout", saved.ID); out != "Good morning everyone." {
		t.Errorf("stdout export = %q", out)
	}

	dir := t.TempDir()
	out := decodeJSON[ops.ExportOutput](t, mustRun(t, lib, "", "export", "--dir="+dir, saved.ID))
	if out.Path != filepath.Join(dir, "Keynote.txt") {
		t.Errorf("path = %q", out.Path)
	}
	data, err := os.ReadFile(out.Path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "Good morning everyone." {
		t.Errorf("file = %q", data)
	}

	// Default directory is ~/.prompter/exports.
	out = decodeJSON[ops.ExportOutput](t, mustRun(t, lib, "", "export", saved.ID))
	if filepath.Base(filepath.Dir(out.Path)) != "exports" {
		t.Errorf("default export path = %q", out.Path)
	}
}

func TestCLIUpload(t *testing.T) {
	lib := setupTestLib(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "wedding toast.txt")
	if err := os.WriteFile(path, []byte("Raise your glasses"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := decodeJSON[ops.SaveOutput](t, mustRun(t, lib, "", "upload", "--folder=Personal", path))
	if out.Title != "wedding toast" || out.Folder != "Personal" {
		t.Errorf("upload = %+v", out)
	}

	png := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, lib, "", "upload", png); err == nil || !strings.Contains(err.Error(), "UNSUPPORTED_UPLOAD_TYPE") {
		t.Errorf("err = %v, want UNSUPPORTED_UPLOAD_TYPE", err)
	}

	if _, err := run(t, lib, "", "upload", filepath.Join(dir, "missing.txt")); err == nil || !strings.Contains(err.Error(), "FILE_NOT_FOUND") {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestCLIBackupRestore(t *testing.T) {
	lib := setupTestLib(t)
	mustRun(t, lib, "Hello world", "save", "--title=Keynote", "--folder=Work")
	mustRun(t, lib, "Cheers", "save", "--title=Toast")

	path := filepath.Join(t.TempDir(), "library.yaml")
	backupOut := decodeJSON[ops.BackupOutput](t, mustRun(t, lib, "", "backup", "--path="+path))
	if backupOut.Count != 2 || backupOut.Format != "yaml" {
		t.Errorf("backup = %+v", backupOut)
	}

	other := setupTestLib(t)
	mustRun(t, other, "local", "save", "--title=Local")

	restored := decodeJSON[ops.RestoreOutput](t, mustRun(t, other, "", "restore", path))
	if restored.Restored != 2 || restored.Total != 3 {
		t.Errorf("merge restore = %+v", restored)
	}

	restored = decodeJSON[ops.RestoreOutput](t, mustRun(t, other, "", "restore", "--mode=replace", "--yes", path))
	if restored.Total != 2 {
		t.Errorf("replace restore = %+v", restored)
	}
}

func TestCLIRestore_ReplacePrompts(t *testing.T) {
	lib := setupTestLib(t)
	mustRun(t, lib, "Hello world", "save", "--title=Keynote")
	path := filepath.Join(t.TempDir(), "library.jsonl")
	mustRun(t, lib, "", "backup", "--path="+path)
	mustRun(t, lib, "later", "save", "--title=Later")

	for _, answer := range []string{"", "n\n"} {
		_, err := run(t, lib, answer, "restore", "--mode=replace", path)
		if err == nil || !strings.Contains(err.Error(), "DESTRUCTIVE_ACTION_UNCONFIRMED") {
			t.Errorf("answer %q: err = %v, want DESTRUCTIVE_ACTION_UNCONFIRMED", answer, err)
		}
	}
	folders := decodeJSON[ops.FoldersOutput](t, mustRun(t, lib, "", "folders"))
	if folders.Folders[0].Count != 2 {
		t.Errorf("library changed after declined replace: %+v", folders.Folders)
	}

	restored := decodeJSON[ops.RestoreOutput](t, mustRun(t, lib, "y\n", "restore", "--mode=replace", path))
	if restored.Total != 1 {
		t.Errorf("replace restore = %+v", restored)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	lib := setupTestLib(t)

	t.Run("show without id", func(t *testing.T) {
		if _, err := run(t, lib, "", "show"); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("restore bad mode", func(t *testing.T) {
		if _, err := run(t, lib, "", "restore", "--mode=overwrite", "x.jsonl"); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("backup bad format", func(t *testing.T) {
		if _, err := run(t, lib, "", "backup", "--format=xml"); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestStartupContent_OnlyLoadedForViewer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		io.WriteString(w, "Remote speech")
	}))
	defer srv.Close()

	lib := setupTestLib(t)
	lib.Config().StartupContent = srv.URL

	mustRun(t, lib, "x", "save", "--title=Keynote")
	mustRun(t, lib, "", "list")
	mustRun(t, lib, "", "folders")
	if n := hits.Load(); n != 0 {
		t.Fatalf("startup content fetched %d times by non-viewer commands", n)
	}

	seedViewer(context.Background(), lib)
	if n := hits.Load(); n != 1 {
		t.Errorf("startup content fetched %d times, want 1", n)
	}
	_ = lib.Session(func(s *session.Session) error {
		if got := s.Buffer().Content; got != "Remote speech" {
			t.Errorf("buffer = %q, want remote content", got)
		}
		return nil
	})
}

func TestSeedViewer_Placeholder(t *testing.T) {
	lib := setupTestLib(t)

	seedViewer(context.Background(), lib)
	_ = lib.Session(func(s *session.Session) error {
		if got := s.Buffer().Content; got != session.Placeholder {
			t.Errorf("buffer = %q, want placeholder", got)
		}
		return nil
	})
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := promptConfirmer{in: strings.NewReader(tt.input), out: &out}.Confirm("Delete?")
		if got != tt.expected {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.expected)
		}
		if out.String() != "Delete? [y/N] " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"prompter"}, expected: false},
		{name: "save command", args: []string{"prompter", "save"}, expected: true},
		{name: "serve command", args: []string{"prompter", "serve"}, expected: true},
		{name: "mcp command", args: []string{"prompter", "mcp"}, expected: true},
		{name: "help flag", args: []string{"prompter", "--help"}, expected: true},
		{name: "version flag", args: []string{"prompter", "--version"}, expected: true},
		{name: "short help flag", args: []string{"prompter", "-h"}, expected: true},
		{name: "short version flag", args: []string{"prompter", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"prompter", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"prompter"}, expected: false},
		{name: "help flag", args: []string{"prompter", "--help"}, expected: true},
		{name: "short help flag", args: []string{"prompter", "-h"}, expected: true},
		{name: "version flag", args: []string{"prompter", "--version"}, expected: true},
		{name: "short version flag", args: []string{"prompter", "-v"}, expected: true},
		{name: "help subcommand", args: []string{"prompter", "help"}, expected: true},
		{name: "save command is not help", args: []string{"prompter", "save"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		content := "  small content\n"
		result, err := readStdin(strings.NewReader(content), 1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != content {
			t.Errorf("expected %q, got %q", content, result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		_, err := readStdin(strings.NewReader(strings.Repeat("x", 100)), 50)
		if err == nil {
			t.Error("expected error for content exceeding limit, got nil")
		}
	})
}

func TestStdinHasData(t *testing.T) {
	if !stdinHasData(strings.NewReader("x")) {
		t.Error("in-memory reader should count as piped input")
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	if !stdinHasData(r) {
		t.Error("pipe should count as piped input")
	}
}
