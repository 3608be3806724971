// Package storage persists capture screenshots on local disk.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const (
	fetchTimeout = 30 * time.Second
	maxImageSize = 16 << 20
)

// ErrInvalidImageName rejects names that could escape the image
// directory.
var ErrInvalidImageName = errors.New("invalid image name")

// imageNamePattern matches content-addressed names as produced by
// SaveBytes. Anything else is refused at the path boundary.
var imageNamePattern = regexp.MustCompile(`^[a-f0-9]{64}\.png$`)

// ImageStore writes screenshots under a single directory with
// content-addressed names: the same image saved twice lands on the same
// file, so duplicate captures cost no extra disk.
type ImageStore struct {
	dir        string
	httpClient *http.Client
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{
		dir: dir,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
	}, nil
}

// SaveBytes stores image data and returns its content-addressed name.
func (s *ImageStore) SaveBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data is empty")
	}

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + ".png"
	path := filepath.Join(s.dir, name)

	if _, err := os.Stat(path); err == nil {
		return name, nil
	}

	// Write-then-rename keeps a crashed write from leaving a partial file
	// under the final name.
	tmp, err := os.CreateTemp(s.dir, "capture-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to finalize image file: %w", err)
	}
	return name, nil
}

// SaveFromURL downloads a provider-hosted screenshot and stores it.
func (s *ImageStore) SaveFromURL(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("image URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code fetching image: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}
	return s.SaveBytes(data)
}

// Path resolves a stored image name to its absolute path. Names that do
// not match the content-addressed form are rejected, which also blocks
// any path traversal attempt.
func (s *ImageStore) Path(name string) (string, error) {
	if !imageNamePattern.MatchString(name) {
		return "", ErrInvalidImageName
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("image not found: %w", err)
	}
	return path, nil
}
