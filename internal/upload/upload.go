// Package upload reads a user-supplied text file into the working buffer.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/prompter/internal/errors"
)

// MaxSize caps an uploaded file. Scripts are speeches, not books.
const MaxSize = 8 << 20

// sniffLen is how much http.DetectContentType looks at.
const sniffLen = 512

// Result is an accepted upload.
type Result struct {
	Name    string `json:"name"` // base file name, used as the working title
	Content string `json:"content"`
}

// ReadText reads the file at path. The file is accepted when its name ends
// in .txt or its leading bytes sniff as text/plain.
func ReadText(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()
	return FromReader(filepath.Base(path), f)
}

// FromReader is ReadText for content that did not come from the local
// filesystem, such as a multipart form part.
func FromReader(name string, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read upload: %w", err))
	}
	if len(data) > MaxSize {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("upload exceeds %d bytes", MaxSize))
	}

	detected := DetectType(data)
	if !Accepts(name, detected) {
		return nil, errors.NewUnsupportedUploadType(name, detected)
	}
	if !utf8.Valid(data) {
		return nil, errors.NewUnsupportedUploadType(name, "non-UTF-8 text")
	}

	// A UTF-8 byte order mark is not part of the speech.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	return &Result{Name: name, Content: string(data)}, nil
}

// DetectType returns the sniffed media type without parameters.
func DetectType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	mt := http.DetectContentType(data)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}

// Accepts reports whether a file with this name and sniffed type is taken.
func Accepts(name, detected string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".txt") || detected == "text/plain"
}
