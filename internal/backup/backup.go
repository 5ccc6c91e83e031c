// Package backup reads and writes whole-library backups.
//
// Two formats are supported. JSONL is a header line followed by one script
// per line. YAML is a single document with the same header fields and a
// scripts sequence. Both carry every persisted field, so restoring a backup
// reproduces the library exactly.
package backup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/script"
	"github.com/hpungsan/prompter/internal/store"
)

// SchemaVersion is written into every backup. Restores accept any 1.x.
const SchemaVersion = "1.0"

// maxLine bounds a single JSONL line (one script).
const maxLine = 16 << 20

// Format is a backup file format.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Extensions lists the file extensions backups may use.
var Extensions = []string{".jsonl", ".yaml", ".yml"}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("unsupported backup extension %q (want .jsonl or .yaml)", filepath.Ext(path)))
	}
}

// ParseFormat validates a user-supplied format name. Empty means JSONL.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSONL:
		return FormatJSONL, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", errors.NewInvalidRequest("format must be one of: jsonl, yaml")
	}
}

// Ext returns the canonical file extension for f.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".jsonl"
}

// Header is the first JSONL line.
type Header struct {
	PrompterBackup bool   `json:"_prompter_backup"`
	SchemaVersion  string `json:"schema_version"`
	ExportedAt     int64  `json:"exported_at"` // unix seconds
}

// record is any JSONL line: the header or a script.
type record struct {
	PrompterBackup bool   `json:"_prompter_backup,omitempty"`
	SchemaVersion  string `json:"schema_version,omitempty"`
	script.Script
}

// document is the YAML layout.
type document struct {
	SchemaVersion string          `yaml:"schema_version"`
	ExportedAt    int64           `yaml:"exported_at"`
	Scripts       []script.Script `yaml:"scripts"`
}

// Encode writes scripts to w in format f.
func Encode(w io.Writer, f Format, scripts []script.Script, exportedAt time.Time) error {
	switch f {
	case FormatJSONL:
		return encodeJSONL(w, scripts, exportedAt)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		doc := document{
			SchemaVersion: SchemaVersion,
			ExportedAt:    exportedAt.Unix(),
			Scripts:       scripts,
		}
		if doc.Scripts == nil {
			doc.Scripts = []script.Script{}
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("unknown backup format %q", f))
	}
}

func encodeJSONL(w io.Writer, scripts []script.Script, exportedAt time.Time) error {
	bw := bufio.NewWriter(w)
	header, err := json.Marshal(Header{
		PrompterBackup: true,
		SchemaVersion:  SchemaVersion,
		ExportedAt:     exportedAt.Unix(),
	})
	if err != nil {
		return err
	}
	if _, err := bw.Write(append(header, '\n')); err != nil {
		return err
	}
	for _, sc := range scripts {
		line, err := json.Marshal(sc)
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LineError describes a record that could not be restored.
type LineError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode reads a backup. Records that fail to parse or validate are skipped
// and reported; a later record repeating an earlier id is skipped too. The
// returned error is reserved for an unreadable file or an unsupported
// schema version.
func Decode(r io.Reader, f Format) ([]script.Script, []LineError, error) {
	var (
		scripts []script.Script
		errs    []LineError
		err     error
	)
	switch f {
	case FormatJSONL:
		scripts, errs, err = decodeJSONL(r)
	case FormatYAML:
		scripts, errs, err = decodeYAML(r)
	default:
		return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("unknown backup format %q", f))
	}
	if err != nil {
		return nil, nil, err
	}
	return scripts, errs, nil
}

func decodeJSONL(r io.Reader) ([]script.Script, []LineError, error) {
	var (
		c    collector
		line int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.fail(line, "", "PARSE_ERROR", fmt.Sprintf("invalid JSON: %v", err))
			continue
		}
		if rec.PrompterBackup {
			if err := checkVersion(rec.SchemaVersion); err != nil {
				return nil, nil, err
			}
			continue
		}
		c.add(line, rec.Script)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("failed to read backup at line %d: %v", line+1, err))
	}
	return c.scripts, c.errs, nil
}

func decodeYAML(r io.Reader) ([]script.Script, []LineError, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("invalid YAML: %v", err))
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, errors.NewInvalidRequest("backup must be a YAML mapping")
	}

	var (
		c       collector
		version string
		items   *yaml.Node
	)
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "schema_version":
			version = val.Value
		case "scripts":
			if val.Kind != yaml.SequenceNode {
				return nil, nil, errors.NewInvalidRequest("scripts must be a YAML sequence")
			}
			items = val
		}
	}
	if err := checkVersion(version); err != nil {
		return nil, nil, err
	}
	if items == nil {
		return nil, nil, nil
	}

	for _, item := range items.Content {
		var sc script.Script
		if err := item.Decode(&sc); err != nil {
			c.fail(item.Line, "", "PARSE_ERROR", fmt.Sprintf("invalid script: %v", err))
			continue
		}
		c.add(item.Line, sc)
	}
	return c.scripts, c.errs, nil
}

func checkVersion(v string) error {
	if v == "" || !strings.HasPrefix(v, "1.") {
		return errors.NewInvalidRequest(fmt.Sprintf("unsupported backup schema_version %q", v))
	}
	return nil
}

// collector validates decoded scripts and drops duplicates.
type collector struct {
	scripts []script.Script
	errs    []LineError
	seen    map[string]bool
}

func (c *collector) add(line int, sc script.Script) {
	if err := script.Validate(sc); err != nil {
		c.fail(line, sc.ID, "INVALID_RECORD", err.Error())
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if c.seen[sc.ID] {
		c.fail(line, sc.ID, "DUPLICATE_ID", fmt.Sprintf("script %s appears more than once", sc.ID))
		return
	}
	c.seen[sc.ID] = true
	sc.Folder = script.NormalizeFolder(sc.Folder)
	c.scripts = append(c.scripts, sc)
}

func (c *collector) fail(line int, id, code, msg string) {
	c.errs = append(c.errs, LineError{Line: line, ID: id, Code: code, Message: msg})
}

// Mode controls how a restore combines with the current library.
type Mode string

const (
	ModeMerge   Mode = "merge"   // upsert each restored script by id
	ModeReplace Mode = "replace" // the backup becomes the whole library
)

// ParseMode validates a user-supplied mode. Empty means merge.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", errors.NewInvalidRequest("mode must be one of: merge, replace")
	}
}

// Apply returns the library that results from restoring incoming into
// current. Neither input is modified.
func Apply(current, incoming []script.Script, mode Mode) []script.Script {
	if mode == ModeReplace {
		out := make([]script.Script, len(incoming))
		copy(out, incoming)
		return out
	}
	out := current
	for _, sc := range incoming {
		out = store.Upsert(out, sc)
	}
	if len(incoming) == 0 {
		out = make([]script.Script, len(current))
		copy(out, current)
	}
	return out
}
