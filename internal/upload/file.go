// Package upload turns user supplied files into conversation documents.
package upload

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/pkg/errors"
)

// ErrRejected is matched by every decoding failure.
var ErrRejected = errors.New("file rejected")

var (
	ErrUnsupportedType = fmt.Errorf("%w: unsupported file type, only .txt files are accepted", ErrRejected)
	ErrInvalidEncoding = fmt.Errorf("%w: content is not valid UTF-8 text", ErrRejected)
	ErrEmpty           = fmt.Errorf("%w: file has no text", ErrRejected)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File is an uploaded file: its display name and raw bytes.
type File struct {
	Name string
	Data []byte
}

// ReadFile loads path from disk as a File named after its base name.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrapf(err, "read %s", path)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// Accepted reports whether name has the only accepted extension.
func Accepted(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".txt")
}

// Decode validates f and returns its text as a Document.
// Each file is judged on its own; callers process batches file by file.
func Decode(f File) (conversation.Document, error) {
	if !Accepted(f.Name) {
		return conversation.Document{}, errors.Wrap(ErrUnsupportedType, f.Name)
	}
	data := bytes.TrimPrefix(f.Data, utf8BOM)
	if !utf8.Valid(data) {
		return conversation.Document{}, errors.Wrap(ErrInvalidEncoding, f.Name)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return conversation.Document{}, errors.Wrap(ErrEmpty, f.Name)
	}
	return conversation.Document{SourceName: f.Name, Text: text}, nil
}
