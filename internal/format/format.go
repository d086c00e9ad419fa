// Package format renders resolved results as JSON, an HTML page, or a
// downloadable HTML file.
package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Format selects an output rendering.
type Format string

const (
	JSON     Format = "json"
	HTML     Format = "html"
	Download Format = "download"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// ErrInvalidDownload is returned for download names that were not produced by Render.
var ErrInvalidDownload = errors.New("invalid download file name")

// Parse resolves a format query value. Empty means JSON.
func Parse(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return JSON, nil
	case JSON, HTML, Download:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Output is a rendered result.
type Output struct {
	Content     []byte
	ContentType string
	// File is the saved download name, set only for Download.
	File string
}

// Paragraphs marks data as running text rather than records.
type Paragraphs []string

// Formatter renders values. Download files are written to dir.
type Formatter struct {
	dir     string
	newName func() string
}

// New creates a Formatter that saves downloads under dir.
func New(dir string) *Formatter {
	return &Formatter{dir: dir, newName: func() string { return uuid.NewString() + ".html" }}
}

// Dir returns the download directory.
func (f *Formatter) Dir() string {
	return f.dir
}

// Render renders data under title in format.
func (f *Formatter) Render(title string, data any, format Format) (Output, error) {
	switch format {
	case JSON, "":
		raw, err := json.Marshal(data)
		if err != nil {
			return Output{}, fmt.Errorf("render json: %w", err)
		}
		return Output{Content: raw, ContentType: ContentTypeJSON}, nil
	case HTML:
		page, err := f.html(title, data)
		if err != nil {
			return Output{}, err
		}
		return Output{Content: page, ContentType: ContentTypeHTML}, nil
	case Download:
		return f.download(title, data)
	}
	return Output{}, fmt.Errorf("unsupported format %q", format)
}

func (f *Formatter) html(title string, data any) ([]byte, error) {
	v, err := buildView(title, data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Formatter) download(title string, data any) (Output, error) {
	page, err := f.html(title, data)
	if err != nil {
		return Output{}, err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create download dir: %w", err)
	}
	name := f.newName()
	if err := os.WriteFile(filepath.Join(f.dir, name), page, 0o644); err != nil {
		return Output{}, fmt.Errorf("save download: %w", err)
	}
	var buf bytes.Buffer
	if err := downloadTemplate.Execute(&buf, downloadView{Title: title, File: name}); err != nil {
		return Output{}, fmt.Errorf("render download page: %w", err)
	}
	return Output{Content: buf.Bytes(), ContentType: ContentTypeHTML, File: name}, nil
}

// DownloadPath returns the on-disk path of a saved download. Names must be
// a uuid followed by ".html".
func DownloadPath(dir, name string) (string, error) {
	id, ok := strings.CutSuffix(name, ".html")
	if !ok {
		return "", ErrInvalidDownload
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return "", ErrInvalidDownload
	}
	return filepath.Join(dir, name), nil
}
