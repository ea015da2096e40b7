// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Decoder extracts plain text from one source file format. Formats with
// no registered decoder are ignored by ingestion.
type Decoder interface {
	// Decode reads the file at path and returns its text content.
	Decode(path string) (string, error)
}

// DecoderFor returns the decoder for a file, selected by extension.
// The second return is false for unsupported extensions.
func DecoderFor(path string) (Decoder, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return textDecoder{}, true
	case ".pdf":
		return pdfDecoder{}, true
	}
	return nil, false
}

// textDecoder reads Markdown and plain-text files. The content must be
// valid UTF-8 with no NUL bytes; anything else is not a text document.
type textDecoder struct{}

func (textDecoder) Decode(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("binary content (NUL byte)")
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("invalid UTF-8")
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty document")
	}
	return text, nil
}

// pdfDecoder extracts plain text from PDF files in-process.
type pdfDecoder struct{}

func (pdfDecoder) Decode(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text")
	}
	return text, nil
}
