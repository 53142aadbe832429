// Package playback streams the current upload back to the page's preview
// player with HTTP Range support.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/comedypulse/pulse-agent/internal/logging"
)

type PlaybackService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath, contentType string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logging.WithComponent(logger, "playback")}
}

// ServeFile writes filePath, or the requested byte range of it. An empty
// contentType is derived from the extension, then from the file's bytes.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath, contentType string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filePath))
	}
	if contentType == "" {
		mt, err := mimetype.DetectFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to detect content type: %w", err)
		}
		contentType = mt.String()
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rng, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// Malformed ranges are ignored and the whole file is sent.
		s.logger.Debug("ignoring malformed range", "range", r.Header.Get("Range"))
		rng = nil
	case err != nil:
		return err
	}

	if rng == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, file)
		}
		return nil
	}

	if _, err := file.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	w.Header().Set("Content-Length", strconv.FormatInt(rng.ContentLength(), 10))
	w.Header().Set("Content-Range", rng.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		io.CopyN(w, file, rng.ContentLength())
	}
	return nil
}
