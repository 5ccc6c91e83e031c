package mcp

import "github.com/mark3labs/mcp-go/mcp"

var saveToolDef = mcp.NewTool("script_save",
	mcp.WithDescription("Save a teleprompter script. Without id a new script is created and title is required. "+
		"With id the existing script is updated; omitted fields keep their current values."),
	mcp.WithString("id", mcp.Description("ID of the script to update")),
	mcp.WithString("title", mcp.Description("Script title")),
	mcp.WithString("folder", mcp.Description("Folder name (default: General)")),
	mcp.WithString("content", mcp.Description("Script text")),
)

var getToolDef = mcp.NewTool("script_get",
	mcp.WithDescription("Fetch one script with its full text, character count, and word count."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Script ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listToolDef = mcp.NewTool("script_list",
	mcp.WithDescription("List scripts, most recently updated first. Filters by folder and a case-insensitive "+
		"title/content search. Returns summaries without text."),
	mcp.WithString("folder", mcp.Description(`Folder to show, or "All" (default)`)),
	mcp.WithString("query", mcp.Description("Search text")),
	mcp.WithNumber("limit", mcp.Description("Maximum results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Results to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var foldersToolDef = mcp.NewTool("script_folders",
	mcp.WithDescription(`List folders with script counts. The first entry is "All".`),
	mcp.WithReadOnlyHintAnnotation(true),
)

var deleteToolDef = mcp.NewTool("script_delete",
	mcp.WithDescription("Permanently delete a script. There is no undo; confirm must be true."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Script ID")),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true to delete")),
	mcp.WithDestructiveHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("script_export",
	mcp.WithDescription(`Export a script as "<title>.txt". With write=true the file is written under `+
		"~/.prompter/exports (or dir); otherwise the text is returned."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Script ID")),
	mcp.WithBoolean("write", mcp.Description("Write the file instead of returning content")),
	mcp.WithString("dir", mcp.Description("Target directory when writing")),
)

var backupToolDef = mcp.NewTool("script_backup",
	mcp.WithDescription("Back up the whole library to a JSONL or YAML file."),
	mcp.WithString("path", mcp.Description("Output path (default: ~/.prompter/exports/library-<timestamp>.jsonl)")),
	mcp.WithString("format", mcp.Description("Backup format"), mcp.Enum("jsonl", "yaml")),
)

var restoreToolDef = mcp.NewTool("script_restore",
	mcp.WithDescription("Restore scripts from a backup file. merge upserts by id; replace swaps the whole library, deleting scripts not in the backup, and requires confirm=true."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Backup file path")),
	mcp.WithString("mode", mcp.Description("Restore mode (default merge)"), mcp.Enum("merge", "replace")),
	mcp.WithBoolean("confirm", mcp.Description("Must be true for mode=replace")),
	mcp.WithDestructiveHintAnnotation(true),
)
