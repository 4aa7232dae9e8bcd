// Package parser extracts text from uploaded documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docblocks/internal/doctree"
)

// ErrUnsupported is returned for files no parser understands.
var ErrUnsupported = errors.New("unsupported document format")

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// Options tunes the parsers ForFile hands out.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the parser for a file. The extension decides when it is
// known; otherwise the leading bytes are sniffed, since Drive downloads often
// arrive without a usable name.
func ForFile(filename string, head []byte, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md", ".markdown":
		return &TextParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	}

	switch {
	case bytes.HasPrefix(head, []byte("%PDF")):
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return &DOCXParser{}, nil
	case looksLikeHTML(head):
		return &HTMLParser{}, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return nil, fmt.Errorf("%w: extension %s", ErrUnsupported, ext)
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extract parses data and renders it as converter input text.
func Extract(filename string, data []byte, opts Options) (string, error) {
	p, err := ForFile(filename, data, opts)
	if err != nil {
		return "", err
	}
	tree, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return "", err
	}
	text := doctree.Render(tree)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: no text extracted", filename)
	}
	return text, nil
}

func looksLikeHTML(head []byte) bool {
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html")
}
