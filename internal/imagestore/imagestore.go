// Package imagestore keeps the image payloads of reply rules in the
// images/ subdirectory of the data dir. Images come in as http(s)
// URLs, base64 payloads or names of already stored files, and go out
// as file:/// URIs for the host's image message segment.
package imagestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yahayao/replybot/internal/logging"
)

const maxImageSize = 16 << 20

var ErrNotFound = errors.New("image not found")

type Store struct {
	dir  string
	http *http.Client
}

// New creates the image directory on first run.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{
		dir:  dir,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// Ingest accepts whatever the admin pasted after the pipe: an http(s)
// URL, a base64:// payload, raw base64, or the name of a file already
// in the store. Returns the stored file name.
func (s *Store) Ingest(ctx context.Context, src string) (string, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return "", errors.New("empty image source")
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return s.FromURL(ctx, src)
	case strings.HasPrefix(src, "base64://"):
		return s.FromBase64(strings.TrimPrefix(src, "base64://"))
	case s.Has(src):
		return src, nil
	default:
		// last resort: maybe it is bare base64
		return s.FromBase64(src)
	}
}

// FromURL downloads an image and stores it.
func (s *Store) FromURL(ctx context.Context, rawURL string) (string, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return "", fmt.Errorf("bad image url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("image download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("image download: %w", err)
	}
	if len(data) > maxImageSize {
		return "", fmt.Errorf("image too large (> %d bytes)", maxImageSize)
	}
	return s.put(data)
}

// FromBase64 decodes a base64 payload and stores it.
func (s *Store) FromBase64(b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return "", fmt.Errorf("bad base64 image: %w", err)
	}
	if len(data) > maxImageSize {
		return "", fmt.Errorf("image too large (> %d bytes)", maxImageSize)
	}
	return s.put(data)
}

func (s *Store) put(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image data")
	}
	name := uuid.NewString() + extFor(data)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return "", err
	}
	logger := logging.GetLogger("imagestore")
	logger.Debug().Str("file", name).Int("bytes", len(data)).Msg("image stored")
	return name, nil
}

func (s *Store) Has(name string) bool {
	if name == "" || name != filepath.Base(name) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// FileURI returns the file:/// URI the host loads the image from.
func (s *Store) FileURI(name string) (string, error) {
	if !s.Has(name) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	abs, err := filepath.Abs(s.Path(name))
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Remove deletes a stored image. Missing files are fine: the owning
// rule is already gone or never had one stored.
func (s *Store) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// extFor sniffs the file extension from the image bytes.
func extFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".img"
	}
}
