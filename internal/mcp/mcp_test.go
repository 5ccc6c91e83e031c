package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/config"
	"github.com/hpungsan/prompter/internal/db"
	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/ops"
)

// testSetup opens a library on a temporary database.
func testSetup(t *testing.T, mutate ...func(*config.Config)) *ops.Library {
	t.Helper()
	t.Setenv("PROMPTER_HOME", t.TempDir())

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests
	for _, m := range mutate {
		m(cfg)
	}

	return ops.Open(context.Background(), database, cfg)
}

func newHandlers(t *testing.T) *Handlers {
	t.Helper()
	return NewHandlers(testSetup(t), zerolog.Nop())
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// saveScript saves a script through the tool and returns its ID.
func saveScript(t *testing.T, h *Handlers, title, folder, content string) string {
	t.Helper()
	result, err := h.HandleSave(context.Background(), makeRequest(map[string]any{
		"title":   title,
		"folder":  folder,
		"content": content,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return parseOutput(t, result)["id"].(string)
}

func TestHandleSave(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "create",
			args:      map[string]any{"title": "Keynote", "content": "Hello world"},
			wantError: false,
		},
		{
			name:      "create with folder",
			args:      map[string]any{"title": "Toast", "folder": "Personal", "content": "Cheers"},
			wantError: false,
		},
		{
			name:      "missing title",
			args:      map[string]any{"content": "Hello"},
			wantError: true,
			errorCode: "VALIDATION_ERROR",
		},
		{
			name:      "blank title",
			args:      map[string]any{"title": "   ", "content": "Hello"},
			wantError: true,
			errorCode: "VALIDATION_ERROR",
		},
		{
			name:      "update unknown id",
			args:      map[string]any{"id": "01UNKNOWN", "title": "x"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "wrong argument type",
			args:      map[string]any{"title": 42},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleSave_UpdateKeepsOmittedFields(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	id := saveScript(t, h, "Keynote", "Work", "v1")

	result, err := h.HandleSave(ctx, makeRequest(map[string]any{"id": id, "content": "v2"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["created"] != false {
		t.Errorf("created = %v, want false", out["created"])
	}

	got := parseOutput(t, mustCall(t, h.HandleGet, map[string]any{"id": id}))
	if got["title"] != "Keynote" || got["folder"] != "Work" || got["content"] != "v2" {
		t.Errorf("script = %v", got)
	}
}

func TestHandleGet(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	id := saveScript(t, h, "Keynote", "", "Hello brave world")

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{name: "found", args: map[string]any{"id": id}},
		{name: "not found", args: map[string]any{"id": "01MISSING"}, wantError: true, errorCode: "NOT_FOUND"},
		{name: "no id", args: map[string]any{}, wantError: true, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleGet(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			out := parseOutput(t, result)
			if out["words"] != float64(3) {
				t.Errorf("words = %v, want 3", out["words"])
			}
			if out["folder"] != "General" {
				t.Errorf("folder = %v, want General", out["folder"])
			}
		})
	}
}

func TestHandleList(t *testing.T) {
	h := newHandlers(t)
	saveScript(t, h, "Keynote", "Work", "Hello world")
	saveScript(t, h, "Quarterly review", "Work", "hello again")
	saveScript(t, h, "Wedding toast", "Personal", "Raise your glasses")

	tests := []struct {
		name      string
		args      map[string]any
		wantCount int
		wantTotal int
		hasMore   bool
	}{
		{name: "all", args: map[string]any{}, wantCount: 3, wantTotal: 3},
		{name: "folder", args: map[string]any{"folder": "Work"}, wantCount: 2, wantTotal: 2},
		{name: "query", args: map[string]any{"query": "HELLO"}, wantCount: 2, wantTotal: 2},
		{name: "folder and query", args: map[string]any{"folder": "Personal", "query": "hello"}, wantCount: 0, wantTotal: 0},
		{name: "paged", args: map[string]any{"limit": 2}, wantCount: 2, wantTotal: 3, hasMore: true},
		{name: "offset", args: map[string]any{"limit": 2, "offset": 2}, wantCount: 1, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := parseOutput(t, mustCall(t, h.HandleList, tt.args))
			items := out["items"].([]any)
			if len(items) != tt.wantCount {
				t.Errorf("items = %d, want %d", len(items), tt.wantCount)
			}
			page := out["pagination"].(map[string]any)
			if page["total"] != float64(tt.wantTotal) {
				t.Errorf("total = %v, want %d", page["total"], tt.wantTotal)
			}
			if page["has_more"] != tt.hasMore {
				t.Errorf("has_more = %v, want %v", page["has_more"], tt.hasMore)
			}
		})
	}
}

func TestHandleList_MostRecentFirst(t *testing.T) {
	h := newHandlers(t)
	first := saveScript(t, h, "First", "", "a")
	second := saveScript(t, h, "Second", "", "b")

	// Touch the first script so it becomes the most recent.
	mustCall(t, h.HandleSave, map[string]any{"id": first, "content": "a2"})

	items := parseOutput(t, mustCall(t, h.HandleList, map[string]any{}))["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	top := items[0].(map[string]any)["id"]
	if top != first && top != second {
		t.Fatalf("unexpected id %v", top)
	}
	updated0 := items[0].(map[string]any)["updatedAt"].(float64)
	updated1 := items[1].(map[string]any)["updatedAt"].(float64)
	if updated0 < updated1 {
		t.Errorf("items not sorted by updatedAt desc: %v < %v", updated0, updated1)
	}
}

func TestHandleFolders(t *testing.T) {
	h := newHandlers(t)
	saveScript(t, h, "Keynote", "Work", "x")
	saveScript(t, h, "Toast", "Personal", "y")
	saveScript(t, h, "Review", "Work", "z")

	out := parseOutput(t, mustCall(t, h.HandleFolders, map[string]any{}))
	folders := out["folders"].([]any)

	want := []struct {
		name  string
		count float64
	}{{"All", 3}, {"Work", 2}, {"Personal", 1}}
	if len(folders) != len(want) {
		t.Fatalf("folders = %v", folders)
	}
	for i, w := range want {
		f := folders[i].(map[string]any)
		if f["name"] != w.name || f["count"] != w.count {
			t.Errorf("folders[%d] = %v, want %s (%v)", i, f, w.name, w.count)
		}
	}

	selectable := out["selectable"].([]any)
	if len(selectable) != 3 || selectable[0] != "General" {
		t.Errorf("selectable = %v, want General first", selectable)
	}
}

func TestHandleDelete(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	id := saveScript(t, h, "Keynote", "", "x")

	// Without confirm the script survives.
	result, err := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "DESTRUCTIVE_ACTION_UNCONFIRMED")
	if r := mustCall(t, h.HandleGet, map[string]any{"id": id}); r.IsError {
		t.Fatal("script should survive an unconfirmed delete")
	}

	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id, "confirm": false}))
	assertErrorCode(t, result, "DESTRUCTIVE_ACTION_UNCONFIRMED")

	out := parseOutput(t, mustCall(t, h.HandleDelete, map[string]any{"id": id, "confirm": true}))
	if out["deleted"] != true {
		t.Errorf("deleted = %v, want true", out["deleted"])
	}

	result, _ = h.HandleGet(ctx, makeRequest(map[string]any{"id": id}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id, "confirm": true}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleExport(t *testing.T) {
	h := newHandlers(t)
	id := saveScript(t, h, "Keynote", "", "Good morning everyone.")

	out := parseOutput(t, mustCall(t, h.HandleExport, map[string]any{"id": id}))
	if out["name"] != "Keynote.txt" {
		t.Errorf("name = %v, want Keynote.txt", out["name"])
	}
	if out["content"] != "Good morning everyone." {
		t.Errorf("content = %v", out["content"])
	}
	if _, ok := out["path"]; ok {
		t.Error("inline export should not report a path")
	}

	dir := t.TempDir()
	out = parseOutput(t, mustCall(t, h.HandleExport, map[string]any{"id": id, "write": true, "dir": dir}))
	path := out["path"].(string)
	if path != filepath.Join(dir, "Keynote.txt") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "Good morning everyone." {
		t.Errorf("file content = %q", data)
	}
}

func TestHandleBackupRestore(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	keynote := saveScript(t, h, "Keynote", "Work", "Hello world")
	saveScript(t, h, "Toast", "Personal", "Cheers")

	for _, format := range []string{"jsonl", "yaml"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "library."+format)
			out := parseOutput(t, mustCall(t, h.HandleBackup, map[string]any{"path": path, "format": format}))
			if out["count"] != float64(2) {
				t.Fatalf("count = %v, want 2", out["count"])
			}

			h2 := newHandlers(t)
			saveScript(t, h2, "Local only", "", "stays on merge")

			result, err := h2.HandleRestore(ctx, makeRequest(map[string]any{"path": path}))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			restored := parseOutput(t, result)
			if restored["restored"] != float64(2) || restored["total"] != float64(3) {
				t.Errorf("merge restore = %v", restored)
			}

			got := parseOutput(t, mustCall(t, h2.HandleGet, map[string]any{"id": keynote}))
			if got["title"] != "Keynote" || got["content"] != "Hello world" {
				t.Errorf("restored script = %v", got)
			}

			result = mustCall(t, h2.HandleRestore, map[string]any{"path": path, "mode": "replace"})
			assertErrorCode(t, result, "DESTRUCTIVE_ACTION_UNCONFIRMED")
			result = mustCall(t, h2.HandleRestore, map[string]any{"path": path, "mode": "replace", "confirm": false})
			assertErrorCode(t, result, "DESTRUCTIVE_ACTION_UNCONFIRMED")

			restored = parseOutput(t, mustCall(t, h2.HandleRestore, map[string]any{"path": path, "mode": "replace", "confirm": true}))
			if restored["total"] != float64(2) {
				t.Errorf("replace total = %v, want 2", restored["total"])
			}
		})
	}
}

func TestHandleBackup_BadFormat(t *testing.T) {
	h := newHandlers(t)
	result, _ := h.HandleBackup(context.Background(), makeRequest(map[string]any{"format": "xml"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleRestore_Errors(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()

	result, _ := h.HandleRestore(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleRestore(ctx, makeRequest(map[string]any{"path": filepath.Join(t.TempDir(), "missing.jsonl")}))
	assertErrorCode(t, result, "FILE_NOT_FOUND")

	result, _ = h.HandleRestore(ctx, makeRequest(map[string]any{"path": "x.jsonl", "mode": "overwrite"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	s := NewServer(testSetup(t), "test", zerolog.Nop())
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"script_save",
		"script_get",
		"script_list",
		"script_folders",
		"script_delete",
		"script_export",
		"script_backup",
		"script_restore",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	lib := testSetup(t, func(cfg *config.Config) {
		cfg.DisabledTools = []string{"script_delete", "script_restore", "script_delete"}
	})
	tools := NewServer(lib, "test", zerolog.Nop()).ListTools()

	if len(tools) != 6 {
		t.Errorf("registered tool count = %d, want 6", len(tools))
	}
	for _, name := range []string{"script_delete", "script_restore"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	for _, name := range []string{"script_save", "script_get", "script_list"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	lib := testSetup(t, func(cfg *config.Config) {
		cfg.DisabledTools = AllToolNames()
	})
	tools := NewServer(lib, "test", zerolog.Nop()).ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{name: "all valid", input: []string{"script_delete", "script_restore"}, wantLen: 0},
		{name: "one unknown", input: []string{"script_delete", "script_rename"}, wantLen: 1},
		{name: "all unknown", input: []string{"foo", "bar", "baz"}, wantLen: 3},
		{name: "empty list", input: []string{}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 8 {
		t.Errorf("AllToolNames() returned %d names, want 8", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("AllToolNames() not sorted: %v", names)
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message = %v", errObj["message"])
	}
}

func TestErrorResult_WrappedError(t *testing.T) {
	r := errorResult(fmt.Errorf("restore: %w", errors.NewFileNotFound("/tmp/x.jsonl")))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrFileNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrFileNotFound)
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("abc")))

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

type toolFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func mustCall(t *testing.T, fn toolFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatal("no error object in payload")
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result with code %s, got success", expectedCode)
		return
	}
	if code, _ := errorObject(t, result)["code"].(string); code != expectedCode {
		t.Errorf("error code = %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
