package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docreader/internal/doctree"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no parser handles.
	ErrUnsupportedFormat = errors.New("parser: unsupported format")

	// ErrCorruptDocument is returned when a document, or a resource inside a
	// container, is missing or cannot be read. The whole load is aborted.
	ErrCorruptDocument = errors.New("parser: corrupt document")
)

// Parser turns a raw document into ordered heading and body blocks.
type Parser interface {
	Parse(raw *doctree.RawDocument) (*doctree.Document, error)
}

// Options tunes format-specific behavior.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]doctree.Format{
	".txt":      doctree.FormatText,
	".epub":     doctree.FormatEPUB,
	".md":       doctree.FormatMarkdown,
	".markdown": doctree.FormatMarkdown,
	".html":     doctree.FormatHTML,
	".htm":      doctree.FormatHTML,
	".docx":     doctree.FormatDOCX,
	".pdf":      doctree.FormatPDF,
}

// FormatFor maps a filename to its document format.
func FormatFor(filename string) (doctree.Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, ok := SupportedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// ForFormat returns the parser for a format.
func ForFormat(f doctree.Format, opts Options) (Parser, error) {
	switch f {
	case doctree.FormatText:
		return &TextParser{}, nil
	case doctree.FormatEPUB:
		return &EPUBParser{}, nil
	case doctree.FormatMarkdown:
		return &MarkdownParser{}, nil
	case doctree.FormatHTML:
		return &HTMLParser{}, nil
	case doctree.FormatDOCX:
		return &DOCXParser{}, nil
	case doctree.FormatPDF:
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	f, err := FormatFor(filename)
	if err != nil {
		return nil, err
	}
	return ForFormat(f, opts)
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, err := FormatFor(filename)
	return err == nil
}

// Load dispatches raw to the parser for its format.
func Load(raw *doctree.RawDocument, opts Options) (*doctree.Document, error) {
	p, err := ForFormat(raw.Format, opts)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(raw)
	if err != nil {
		return nil, err
	}
	doc.Path = raw.Path
	doc.Format = raw.Format
	return doc, nil
}

// titleFromPath returns the file's base name without its extension.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// collapseSpace trims text and folds internal whitespace runs to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
