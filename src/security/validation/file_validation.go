package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/lotfolio/src/logger"
)

// ErrUnsupportedFile is wrapped by every rejection in this file.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Client-declared MIME types accepted per import source.
var allowedClientContentTypes = map[string]map[string]bool{
	"csv": {
		"text/csv":                 true,
		"application/csv":          true,
		"application/vnd.ms-excel": true, // Often used for CSV by older Excel
		"text/plain":               true,
		"application/octet-stream": true,
	},
	"ibkr": {
		"application/xml":          true,
		"text/xml":                 true,
		"text/plain":               true,
		"application/octet-stream": true,
	},
}

// Types http.DetectContentType may report for an acceptable file, per source.
// octet-stream is allowed; the parser rejects anything that is not really CSV or XML.
var allowedDetectedTypes = map[string]map[string]bool{
	"csv": {
		"text/plain":               true,
		"text/csv":                 true,
		"application/csv":          true,
		"application/octet-stream": true,
	},
	"ibkr": {
		"text/xml":                 true,
		"application/xml":          true,
		"text/plain":               true,
		"application/octet-stream": true,
	},
}

// NormalizeSource maps an import source to the key used here; empty means csv.
func NormalizeSource(source string) string {
	s := strings.ToLower(strings.TrimSpace(source))
	if s == "" {
		return "csv"
	}
	return s
}

func mediaType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

// ValidateClientContentType checks the Content-Type the client declared for the upload.
func ValidateClientContentType(contentType, source string) error {
	allowed, ok := allowedClientContentTypes[NormalizeSource(source)]
	if !ok {
		return fmt.Errorf("%w: unknown import source %q", ErrUnsupportedFile, source)
	}
	if !allowed[mediaType(contentType)] {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType, "source", source)
		return fmt.Errorf("%w: client-declared file type '%s' is not allowed for %s import", ErrUnsupportedFile, contentType, NormalizeSource(source))
	}
	return nil
}

// ValidateFileContentByMagicBytes sniffs the first 512 bytes of file and rewinds it.
// It returns the detected content type.
func ValidateFileContentByMagicBytes(file io.ReadSeeker, source string) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}
	allowed, ok := allowedDetectedTypes[NormalizeSource(source)]
	if !ok {
		return "", fmt.Errorf("%w: unknown import source %q", ErrUnsupportedFile, source)
	}

	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}
	// The parser reads from the start.
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", err)
	}

	detected := mediaType(http.DetectContentType(buffer[:n]))
	if !allowed[detected] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detected, "source", source)
		return detected, fmt.Errorf("%w: detected file content type '%s' is not consistent with a %s file", ErrUnsupportedFile, detected, NormalizeSource(source))
	}
	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detected)
	return detected, nil
}
