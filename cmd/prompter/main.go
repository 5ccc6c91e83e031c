package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/hpungsan/prompter/internal/config"
	"github.com/hpungsan/prompter/internal/db"
	"github.com/hpungsan/prompter/internal/logging"
	"github.com/hpungsan/prompter/internal/mcp"
	"github.com/hpungsan/prompter/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"save": true, "show": true, "list": true, "folders": true,
	"delete": true, "export": true, "upload": true,
	"backup": true, "restore": true, "serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if f is a terminal (not piped).
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___                     _
  | _ \_ _ ___ _ __  _ __ | |_ ___ _ _
  |  _/ '_/ _ \ '  \| '_ \|  _/ -_) '_|
  |_| |_| \___/_|_|_| .__/ \__\___|_|
                    |_|

  Teleprompter script library

  Usage: prompter <command> [options]
         prompter serve        (web UI)
         prompter --help

  MCP server mode requires piped input.`)
}

func fatal(log zerolog.Logger, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal(os.Stdin) {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, zerolog.Nop())
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	bootLog := logging.Stderr("info")

	baseDir, err := config.BaseDir()
	if err != nil {
		fatal(bootLog, err, "could not determine base directory")
	}

	cwd, err := os.Getwd()
	if err != nil {
		fatal(bootLog, err, "could not determine working directory")
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal(bootLog, err, "failed to load config")
	}
	log := logging.Stderr(cfg.LogLevel)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal(log, err, "failed to initialize database")
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	ctx := context.Background()
	lib := ops.Open(ctx, database, cfg, ops.WithLogger(log))
	if d := lib.Diagnostic(); d != nil {
		log.Warn().Str("key", d.Key).Str("reason", d.Reason).Str("quarantine", d.Quarantine).
			Msg("saved scripts could not be read; starting with an empty library")
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(lib, log)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal(os.Stdin) {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'prompter --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(lib, Version, log); err != nil {
		log.Error().Err(err).Msg("mcp server stopped")
		database.Close()
		os.Exit(1)
	}
}
