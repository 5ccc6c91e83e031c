package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	lib *ops.Library
	log zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(lib *ops.Library, log zerolog.Logger) *Handlers {
	return &Handlers{lib: lib, log: log}
}

// Request types for each tool

// SaveRequest represents the arguments for script_save.
type SaveRequest struct {
	ID      string  `json:"id,omitempty"`
	Title   string  `json:"title,omitempty"`
	Folder  string  `json:"folder,omitempty"`
	Content *string `json:"content,omitempty"`
}

// GetRequest represents the arguments for script_get.
type GetRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for script_list.
type ListRequest struct {
	Folder string `json:"folder,omitempty"`
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// DeleteRequest represents the arguments for script_delete.
type DeleteRequest struct {
	ID      string `json:"id"`
	Confirm bool   `json:"confirm"`
}

// ExportRequest represents the arguments for script_export.
type ExportRequest struct {
	ID    string `json:"id"`
	Write bool   `json:"write,omitempty"`
	Dir   string `json:"dir,omitempty"`
}

// BackupRequest represents the arguments for script_backup.
type BackupRequest struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// RestoreRequest represents the arguments for script_restore.
type RestoreRequest struct {
	Path    string `json:"path"`
	Mode    string `json:"mode,omitempty"`
	Confirm bool   `json:"confirm,omitempty"`
}

// Handler implementations

// HandleSave handles the script_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.lib.Save(ctx, ops.SaveInput{
		ID:      input.ID,
		Title:   input.Title,
		Folder:  input.Folder,
		Content: input.Content,
	})
	if err != nil {
		return h.fail("script_save", err), nil
	}

	return successResult(result)
}

// HandleGet handles the script_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.lib.Fetch(ctx, ops.FetchInput{ID: input.ID})
	if err != nil {
		return h.fail("script_get", err), nil
	}

	return successResult(result)
}

// HandleList handles the script_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.lib.List(ctx, ops.ListInput{
		Folder: input.Folder,
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return h.fail("script_list", err), nil
	}

	return successResult(result)
}

// HandleFolders handles the script_folders tool call.
func (h *Handlers) HandleFolders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.lib.Folders(ctx)
	if err != nil {
		return h.fail("script_folders", err), nil
	}

	return successResult(result)
}

// HandleDelete handles the script_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.lib.Delete(ctx, ops.DeleteInput{
		ID:      input.ID,
		Confirm: input.Confirm,
	})
	if err != nil {
		return h.fail("script_delete", err), nil
	}

	return successResult(result)
}

// HandleExport handles the script_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.lib.Export(ctx, ops.ExportInput{
		ID:    input.ID,
		Write: input.Write,
		Dir:   input.Dir,
	})
	if err != nil {
		return h.fail("script_export", err), nil
	}

	return successResult(result)
}

// HandleBackup handles the script_backup tool call.
func (h *Handlers) HandleBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BackupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.lib.Backup(ctx, ops.BackupInput{
		Path:   input.Path,
		Format: input.Format,
	})
	if err != nil {
		return h.fail("script_backup", err), nil
	}

	return successResult(result)
}

// HandleRestore handles the script_restore tool call.
func (h *Handlers) HandleRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RestoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.lib.Restore(ctx, ops.RestoreInput{
		Path:    input.Path,
		Mode:    input.Mode,
		Confirm: input.Confirm,
	})
	if err != nil {
		return h.fail("script_restore", err), nil
	}

	return successResult(result)
}

func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	if errors.Is(err, errors.ErrInternal) || !isPrompterError(err) {
		h.log.Error().Err(err).Str("tool", tool).Msg("tool failed")
	}
	return errorResult(err)
}

func isPrompterError(err error) bool {
	var pErr *errors.PrompterError
	return stderrors.As(err, &pErr)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed to the client.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var pErr *errors.PrompterError
	if stderrors.As(err, &pErr) && pErr.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    pErr.Code,
			"message": pErr.Message,
			"status":  pErr.Status,
		}
		if pErr.Details != nil {
			errorObj["details"] = pErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
