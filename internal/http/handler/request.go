package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/service"
	"github.com/ctm-colima/credential-service/internal/storage"
)

// uploadFormField is the multipart field every upload endpoint reads.
const uploadFormField = "file"

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("request body is required", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Validation("request body too large", nil)
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is required", nil)
		default:
			return apperr.Validation("invalid JSON body", nil)
		}
	}
	return nil
}

// readUpload pulls the uploaded file out of a multipart request. The returned closer releases
// any temporary files the multipart parser created.
func readUpload(r *http.Request, maxBytes int64) (storage.Upload, func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return storage.Upload{}, noop, apperr.UploadRejected(fmt.Sprintf("file exceeds %d bytes", maxBytes))
		}
		return storage.Upload{}, noop, apperr.UploadRejected("multipart form with a file field is required")
	}
	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.WarnContext(r.Context(), "multipart cleanup failed", "error", err.Error())
		}
	}
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		cleanup()
		if errors.Is(err, http.ErrMissingFile) {
			return storage.Upload{}, noop, apperr.UploadRejected("file is required")
		}
		return storage.Upload{}, noop, apperr.UploadRejected("unreadable file")
	}
	return storage.Upload{
			DeclaredType: header.Header.Get("Content-Type"),
			Size:         header.Size,
			Body:         file,
		}, func() {
			closeQuietly(file)
			cleanup()
		}, nil
}

func closeQuietly(f multipart.File) { _ = f.Close() }

func serveStored(w http.ResponseWriter, f *service.StoredFile) {
	defer func() { _ = f.Body.Close() }()
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Cache-Control", "private, no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f.Body)
}

func pageFromQuery(r *http.Request) repository.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	return repository.PageRequest{Page: page, PageSize: size}
}
