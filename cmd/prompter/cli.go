package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/mcp"
	"github.com/hpungsan/prompter/internal/ops"
	"github.com/hpungsan/prompter/internal/session"
	"github.com/hpungsan/prompter/internal/upload"
	"github.com/hpungsan/prompter/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(lib *ops.Library, log zerolog.Logger) *cli.App {
	app := &cli.App{
		Name:    "prompter",
		Usage:   "Teleprompter script library",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(lib),
			showCmd(lib),
			listCmd(lib),
			foldersCmd(lib),
			deleteCmd(lib),
			exportCmd(lib),
			uploadCmd(lib),
			backupCmd(lib),
			restoreCmd(lib),
			serveCmd(lib, log),
			mcpCmd(lib, log),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// saveCmd creates the save command.
func saveCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save a script (reads content from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Update the script with this ID"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Script title (required for new scripts)"},
			&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder (default: General)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SaveInput{
				ID:     c.String("id"),
				Title:  c.String("title"),
				Folder: c.String("folder"),
			}

			if stdinHasData(c.App.Reader) {
				content, err := readStdin(c.App.Reader, upload.MaxSize)
				if err != nil {
					return outputError(err)
				}
				if content != "" {
					input.Content = &content
				}
			}
			if input.ID == "" && input.Content == nil {
				return outputError(errors.NewInvalidRequest("script content must be piped via stdin"))
			}

			output, err := lib.Save(c.Context, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a script with its text",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := lib.Fetch(c.Context, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List scripts, most recently updated first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: `Folder filter ("All" for every folder)`},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Case-insensitive title/content search"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Results to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := lib.List(c.Context, ops.ListInput{
				Folder: c.String("folder"),
				Query:  c.String("query"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// foldersCmd creates the folders command.
func foldersCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:  "folders",
		Usage: "List folders with script counts",
		Action: func(c *cli.Context) error {
			output, err := lib.Folders(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a script (asks for confirmation)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"},
		},
		Action: func(c *cli.Context) error {
			input := ops.DeleteInput{ID: c.Args().First()}
			if c.Bool("yes") {
				input.Confirmer = session.Always
			} else {
				input.Confirmer = promptConfirmer{in: c.App.Reader, out: c.App.ErrWriter}
			}

			output, err := lib.Delete(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     `Export a script as "<title>.txt"`,
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Output directory (default: ~/.prompter/exports)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write the text to stdout instead of a file"},
		},
		Action: func(c *cli.Context) error {
			toStdout := c.Bool("stdout")
			output, err := lib.Export(c.Context, ops.ExportInput{
				ID:    c.Args().First(),
				Write: !toStdout,
				Dir:   c.String("dir"),
			})
			if err != nil {
				return outputError(err)
			}
			if toStdout {
				_, err := io.WriteString(c.App.Writer, output.Content)
				return err
			}
			return outputJSON(c, output)
		},
	}
}

// uploadCmd creates the upload command.
func uploadCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Save a .txt file as a script",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Script title (default: file name)"},
			&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder (default: General)"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return outputError(errors.NewInvalidRequest("file is required"))
			}

			res, err := upload.ReadText(path)
			if err != nil {
				return outputError(err)
			}

			title := c.String("title")
			if title == "" {
				title = strings.TrimSuffix(res.Name, filepath.Ext(res.Name))
			}

			output, err := lib.Save(c.Context, ops.SaveInput{
				Title:   title,
				Folder:  c.String("folder"),
				Content: &res.Content,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// backupCmd creates the backup command.
func backupCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Back up the whole library to a JSONL or YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: ~/.prompter/exports/library-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "format", Usage: "jsonl or yaml (default: from path, else jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := lib.Backup(c.Context, ops.BackupInput{
				Path:   c.String("path"),
				Format: c.String("format"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(lib *ops.Library) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore scripts from a backup file (replace asks for confirmation)",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "merge", Usage: "merge (upsert by id) or replace (whole library)"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt for replace"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RestoreInput{
				Path: c.Args().First(),
				Mode: c.String("mode"),
			}
			if c.Bool("yes") {
				input.Confirmer = session.Always
			} else {
				input.Confirmer = promptConfirmer{in: c.App.Reader, out: c.App.ErrWriter}
			}

			output, err := lib.Restore(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(lib *ops.Library, log zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Interface to listen on (default from config: 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config: 8790)"},
		},
		Action: func(c *cli.Context) error {
			cfg := lib.Config()
			if c.IsSet("bind") {
				cfg.WebBind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.WebPort = c.Int("port")
			}

			seedViewer(c.Context, lib)

			srv, err := web.NewServer(lib, Version, log)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, log)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(lib *ops.Library, log zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(_ *cli.Context) error {
			return mcp.Run(lib, Version, log)
		},
	}
}

// seedViewer fills the working buffer with the configured startup content,
// or the placeholder when none is set. Only the web UI has a viewer, so
// other commands never pay for the fetch. Failures are logged by the
// session and leave the placeholder in place.
func seedViewer(ctx context.Context, lib *ops.Library) {
	source := lib.Config().StartupContent
	_ = lib.Session(func(s *session.Session) error {
		if source == "" {
			s.SetText(session.Placeholder)
			return nil
		}
		return s.LoadStartupContent(ctx, source)
	})
}

// promptConfirmer asks on the terminal before a destructive action.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Helper functions

// outputJSON writes result to the app's stdout as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var pErr *errors.PrompterError
	if stderrors.As(err, &pErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", pErr.Code, pErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if r has piped data (not a terminal).
func stdinHasData(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all of r, refusing more than limit bytes.
// Script text is kept verbatim.
func readStdin(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", limit))
	}
	return string(data), nil
}
