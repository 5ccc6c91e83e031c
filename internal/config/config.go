package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix for environment overrides (PROMPTER_LOG_LEVEL, ...).
const EnvPrefix = "PROMPTER_"

// Config holds application configuration.
type Config struct {
	// DefaultSpeed is the viewer scroll speed used when the caller has no preference
	DefaultSpeed int `json:"default_speed"`

	// DefaultFontSize is the viewer font size in points
	DefaultFontSize int `json:"default_font_size"`

	// StartupContent is a file path or http(s) URL read once at startup to seed
	// the working buffer. Empty means use the built-in placeholder.
	StartupContent string `json:"startup_content,omitempty"`

	// StorageKey is the slot key under which the script collection is persisted.
	StorageKey string `json:"storage_key,omitempty"`

	// AllowedPaths is an allowlist of directories for export/backup/restore.
	// Paths outside ~/.prompter/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export/backup/restore.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// WebBind is the interface the web UI listens on.
	WebBind string `json:"web_bind,omitempty"`

	// WebPort is the port the web UI listens on.
	WebPort int `json:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultSpeed:    30,
		DefaultFontSize: 24,
		StorageKey:      "savedScripts",
		LogLevel:        "info",
		WebBind:         "127.0.0.1",
		WebPort:         8790,
	}
}

// Load loads configuration from baseDir/config.json, then applies
// PROMPTER_* overrides from baseDir/.env and the process environment.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	vars, err := envVars(baseDir)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, vars); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.prompter) and repo (.prompter) directories.
// Repo config is found by walking upward from startDir to find the nearest .prompter/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)

	vars, err := envVars(globalDir)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, vars); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .prompter/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".prompter", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// envVars collects PROMPTER_* variables from baseDir/.env (if present) and
// the process environment. The process environment wins.
func envVars(baseDir string) (map[string]string, error) {
	vars := make(map[string]string)

	envPath := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		fileVars, err := godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", envPath, err)
		}
		for k, v := range fileVars {
			if strings.HasPrefix(k, EnvPrefix) {
				vars[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}
	return vars, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, vars map[string]string) error {
	for key, value := range vars {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.TrimPrefix(key, EnvPrefix) {
		case "LOG_LEVEL":
			cfg.LogLevel = value
		case "STARTUP_CONTENT":
			cfg.StartupContent = value
		case "STORAGE_KEY":
			cfg.StorageKey = value
		case "WEB_BIND":
			cfg.WebBind = value
		case "DEFAULT_SPEED":
			n, err := parsePositive(key, value)
			if err != nil {
				return err
			}
			cfg.DefaultSpeed = n
		case "DEFAULT_FONT_SIZE":
			n, err := parsePositive(key, value)
			if err != nil {
				return err
			}
			cfg.DefaultFontSize = n
		case "WEB_PORT":
			n, err := parsePositive(key, value)
			if err != nil {
				return err
			}
			cfg.WebPort = n
		case "ALLOW_UNSAFE_PATHS":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			cfg.AllowUnsafePaths = b
		}
	}
	return nil
}

func parsePositive(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DefaultSpeed = firstNonZero(overlay.DefaultSpeed, base.DefaultSpeed)
	result.DefaultFontSize = firstNonZero(overlay.DefaultFontSize, base.DefaultFontSize)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.WebPort = firstNonZero(overlay.WebPort, base.WebPort)

	result.StartupContent = firstNonEmpty(overlay.StartupContent, base.StartupContent)
	result.StorageKey = firstNonEmpty(overlay.StorageKey, base.StorageKey)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.WebBind = firstNonEmpty(overlay.WebBind, base.WebBind)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// BaseDir returns the prompter home directory: $PROMPTER_HOME if set,
// otherwise ~/.prompter.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvPrefix + "HOME")); dir != "" {
		return filepath.Abs(dir)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".prompter"), nil
}

// ExportsDir returns BaseDir()/exports.
func ExportsDir() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "exports"), nil
}
