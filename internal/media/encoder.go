package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the largest upload the uploader accepts (50 MiB).
const MaxFileSize int64 = 50 * 1024 * 1024

// OversizeMessage is what the uploader tells the user about a rejected file.
const OversizeMessage = "Please select a video smaller than 50MB for this demonstration."

var (
	ErrEncodeFailure = errors.New("media encode failed")
	ErrFileTooLarge  = errors.New("file exceeds the 50 MiB upload limit")
)

// CheckSize rejects sizes above MaxFileSize.
func CheckSize(n int64) error {
	if n > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// FormatSizeMB renders a byte count in megabytes with two decimals.
func FormatSizeMB(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

// Encoded is the inline payload sent to the model.
type Encoded struct {
	Base64    string
	MediaType string
}

type Encoder struct {
	logger *slog.Logger
}

func NewEncoder(logger *slog.Logger) *Encoder {
	return &Encoder{logger: logger}
}

// Encode reads f.Path and returns its bytes as standard base64 together with
// the media type. The declared type wins; a missing or generic one is sniffed
// from the content. Encode does not enforce MaxFileSize.
func (e *Encoder) Encode(f *LocalFile) (Encoded, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: open: %v", ErrEncodeFailure, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: read: %v", ErrEncodeFailure, err)
	}

	mediaType := strings.TrimSpace(f.MediaType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mimetype.Detect(data).String()
		if e.logger != nil {
			e.logger.Debug("sniffed media type", "name", f.Name, "media_type", mediaType)
		}
	}

	return Encoded{
		Base64:    base64.StdEncoding.EncodeToString(data),
		MediaType: mediaType,
	}, nil
}
