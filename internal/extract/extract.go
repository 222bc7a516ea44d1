package extract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"tailorpress/internal/errors"
)

// File reads a resume or job description from disk and extracts its
// plain text. PDF files go through the PDF extractor; anything else is
// treated as UTF-8 text.
func File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				"File does not exist: "+path, err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			"Cannot read file: "+path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDF(data)
	default:
		return PlainText(data)
	}
}

// PDF extracts plain text from an in-memory PDF payload.
func PDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeExtractionFailed,
			"Failed to open PDF", err)
	}

	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeExtractionFailed,
			"Failed to extract PDF text", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", errors.NewIOError(errors.ErrCodeExtractionFailed,
			"Failed to read extracted PDF text", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", errors.NewIOError(errors.ErrCodeExtractedEmpty,
			"PDF contains no extractable text", nil)
	}

	return text, nil
}

// PlainText validates and normalizes a UTF-8 text payload.
func PlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
			"File is not valid UTF-8 text", nil)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.NewIOError(errors.ErrCodeExtractedEmpty,
			"File contains no text", nil)
	}

	return text, nil
}
