// Package extract provides plain-text extraction for the document
// formats the service accepts. The rest of the system only ever sees
// the extracted text.
package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned for file extensions the service does not accept.
var ErrUnsupported = errors.New("unsupported file format")

// supported is the extension whitelist.
var supported = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

// Extractor extracts plain text from uploaded document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether the given extension (with leading dot,
// case-insensitive) is accepted.
func Supported(ext string) bool {
	return supported[strings.ToLower(ext)]
}

// Extract returns the text content of the document. ext must include
// the leading dot (e.g. ".pdf"). Unknown extensions return
// ErrUnsupported.
func (e *Extractor) Extract(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".txt", ".md":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q (accepted: .pdf, .docx, .txt, .md)", ErrUnsupported, ext)
	}
}
