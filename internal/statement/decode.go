package statement

// decode.go turns the raw bytes of an uploaded bank export into text.
//
// Banco do Brasil exports are ISO-8859-1 (Latin-1). Reading them as UTF-8
// mangles every accented counterparty name, so the default path runs the
// bytes through the Latin-1 decoder. A file that starts with a UTF-8 BOM was
// re-saved by a spreadsheet tool and is read as UTF-8 instead, with invalid
// sequences replaced.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxFileSize caps an upload when the caller passes a non-positive limit (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var (
	// ErrEmptyFile is returned when the upload contains no bytes.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when the upload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadAll reads at most maxSize bytes from r and decodes them with Decode.
func ReadAll(r io.Reader, maxSize int64) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	// Read one byte past the limit so an oversized file is detectable.
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read statement: %w", err)
	}
	if int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxSize)
	}

	return Decode(data)
}

// Decode converts statement bytes to a UTF-8 string.
func Decode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	if bytes.HasPrefix(data, utf8BOM) {
		return strings.ToValidUTF8(string(data[len(utf8BOM):]), "\uFFFD"), nil
	}

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("encoding error: %w", err)
	}
	return string(text), nil
}
