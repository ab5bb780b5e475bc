// Package storage validates image uploads and keeps them on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/ctm-colima/credential-service/internal/apperr"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPhoto              Kind = "photos"
	KindSignature          Kind = "signatures"
	KindPresidentSignature Kind = "president"
)

var ErrFileNotFound = errors.New("stored file not found")

var allowedTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
}

// Upload is an incoming file as described by the client.
type Upload struct {
	DeclaredType string
	Size         int64
	Body         io.Reader
}

// Validated is an upload that passed every check and is ready to be written.
type Validated struct {
	ContentType string
	Ext         string
	body        io.Reader
}

// ValidateUpload rejects uploads over maxBytes or whose declared or sniffed type is not PNG or JPEG.
// Nothing is written; the returned value replays the sniffed prefix.
func ValidateUpload(u Upload, maxBytes int64) (*Validated, error) {
	if u.Body == nil {
		return nil, apperr.UploadRejected("file is required")
	}
	if u.Size > maxBytes {
		return nil, apperr.UploadRejected(fmt.Sprintf("file exceeds %d bytes", maxBytes))
	}
	declared := normalizeType(u.DeclaredType)
	ext, ok := allowedTypes[declared]
	if !ok {
		return nil, apperr.UploadRejected("only PNG and JPEG images are accepted")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.Internal(fmt.Errorf("read upload: %w", err))
	}
	head = head[:n]
	if n == 0 {
		return nil, apperr.UploadRejected("file is empty")
	}
	if sniffed := normalizeType(http.DetectContentType(head)); sniffed != declared {
		return nil, apperr.UploadRejected("file content does not match its declared type")
	}
	return &Validated{
		ContentType: declared,
		Ext:         ext,
		body:        io.LimitReader(io.MultiReader(bytes.NewReader(head), u.Body), maxBytes+1),
	}, nil
}

func normalizeType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}

// ContentTypeFor maps a stored path to the type it is served with.
func ContentTypeFor(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

type FileStore interface {
	Save(ctx context.Context, kind Kind, entityID string, file *Validated) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}

// LocalFileStore writes files below a single root directory. Paths are relative to that root.
type LocalFileStore struct {
	root     *os.Root
	maxBytes int64
}

func NewLocalFileStore(dir string, maxBytes int64) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}
	for _, k := range []Kind{KindPhoto, KindSignature, KindPresidentSignature} {
		if err := root.Mkdir(string(k), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create %s dir: %w", k, err)
		}
	}
	return &LocalFileStore{root: root, maxBytes: maxBytes}, nil
}

func (s *LocalFileStore) Close() error { return s.root.Close() }

// Save writes the file as <kind>/<entityID>-<uuid>.<ext> and returns that path.
func (s *LocalFileStore) Save(ctx context.Context, kind Kind, entityID string, file *Validated) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := path.Join(string(kind), fmt.Sprintf("%s-%s.%s", entityID, uuid.NewString(), file.Ext))
	f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	written, copyErr := io.Copy(f, file.body)
	closeErr := f.Close()
	if copyErr == nil && written > s.maxBytes {
		copyErr = apperr.UploadRejected(fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = s.root.Remove(name)
		return "", err
	}
	return name, nil
}

func (s *LocalFileStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := s.root.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes p. Missing files are not an error.
func (s *LocalFileStore) Remove(_ context.Context, p string) error {
	if err := s.root.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
