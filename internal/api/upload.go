package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/comedypulse/pulse-agent/internal/export"
	"github.com/comedypulse/pulse-agent/internal/media"
)

const (
	uploadField = "video"
	// multipartSlack covers boundaries and part headers around the file.
	multipartSlack = 1 << 20
)

var errNoVideoPart = errors.New("multipart field \"video\" is required")

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, media.MaxFileSize+multipartSlack)

		f, err := spoolUpload(r, cfg.UploadsDir)
		if err != nil {
			var tooBig *http.MaxBytesError
			switch {
			case errors.Is(err, media.ErrFileTooLarge), errors.As(err, &tooBig):
				WriteError(w, http.StatusRequestEntityTooLarge, media.OversizeMessage, "FILE_TOO_LARGE")
			case errors.Is(err, errNoVideoPart), errors.Is(err, http.ErrNotMultipart):
				WriteError(w, http.StatusBadRequest, errNoVideoPart.Error(), "BAD_REQUEST")
			default:
				cfg.Logger.Error("upload failed", "error", err)
				WriteError(w, http.StatusBadRequest, "failed to read upload", "BAD_REQUEST")
			}
			return
		}

		cfg.Session.SelectFile(f)
		WriteJSON(w, http.StatusAccepted, SnapshotToResponse(cfg.Session.Snapshot()))
	}
}

// spoolUpload streams the "video" part into dir under a random name. The
// spooled file is removed again on any error.
func spoolUpload(r *http.Request, dir string) (*media.LocalFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errNoVideoPart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}
		defer part.Close()
		return spoolPart(part, dir)
	}
}

func spoolPart(part *multipart.Part, dir string) (*media.LocalFile, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	name := filepath.Base(part.FileName())
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	ext := export.UploadExt(name)
	path := filepath.Join(dir, uuid.NewString()+ext)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(part, media.MaxFileSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = media.CheckSize(n)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &media.LocalFile{
		Path:      path,
		MediaType: part.Header.Get("Content-Type"),
		Name:      name,
		Size:      n,
	}, nil
}
