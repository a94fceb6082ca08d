package parser

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/docreader/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(raw *doctree.RawDocument) (*doctree.Document, error) {
	text, err := extractPDFText(raw.Data)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(raw.Data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: extract pdf text: %w", ErrCorruptDocument, err)
	}

	doc := &doctree.Document{Title: titleFromPath(raw.Path)}
	for _, page := range splitPages(text) {
		page = strings.Trim(page, "\n")
		if strings.TrimSpace(page) == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, textBlocks(page)...)
	}
	return doc, nil
}

func extractPDFText(data []byte) (text string, err error) {
	// The library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(t)
	}
	return buf.String(), nil
}

// extractPdftotext shells out to poppler, which needs a file on disk.
func extractPdftotext(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docreader-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("pdftotext", "-layout", tmpPath, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func splitPages(text string) []string {
	return strings.Split(text, "\f")
}
