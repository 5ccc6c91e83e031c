// Package export turns a single script into a downloadable plain-text file.
//
// The output is always the raw script content. No format conversion takes
// place, whatever a UI label might call the button.
package export

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/hpungsan/prompter/internal/config"
	"github.com/hpungsan/prompter/internal/errors"
	"github.com/hpungsan/prompter/internal/pathcheck"
	"github.com/hpungsan/prompter/internal/script"
)

const (
	// Ext is the extension of every exported file.
	Ext = ".txt"

	// MediaType is the content type served for exported files.
	MediaType = "text/plain; charset=utf-8"
)

// Artifact is an exported script ready to be downloaded or written to disk.
type Artifact struct {
	// Name is "<title>.txt" with the title exactly as the user typed it.
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Content   []byte `json:"-"`
}

// ExportScript builds the artifact for sc. Content is copied verbatim.
func ExportScript(sc script.Script) Artifact {
	return Artifact{
		Name:      sc.Title + Ext,
		MediaType: MediaType,
		Content:   []byte(sc.Content),
	}
}

// FileName is Name reduced to a single safe path component.
func (a Artifact) FileName() string {
	return pathcheck.SanitizeForFilename(strings.TrimSuffix(a.Name, Ext)) + Ext
}

// WriteFile writes a into dir (the exports directory when dir is empty)
// and returns the final path. An existing file with the same name is
// replaced atomically.
func WriteFile(a Artifact, dir string, cfg *config.Config) (string, error) {
	if dir == "" {
		var err error
		dir, err = config.ExportsDir()
		if err != nil {
			return "", errors.NewInternal(err)
		}
	}

	path := filepath.Join(dir, a.FileName())
	if err := pathcheck.ValidatePath(path, pathcheck.Write, []string{Ext}, cfg); err != nil {
		return "", err
	}

	err := pathcheck.WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(a.Content)
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}
