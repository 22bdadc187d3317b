package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// ErrInvalidFilename is returned for upload names that aren't a bare file name.
var ErrInvalidFilename = errors.New("invalid upload filename")

// FileSystem stores uploaded images under a single fixed directory.
// Files keep the client-supplied name; a second upload with the same
// name overwrites the first.
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// BaseDir returns the upload directory.
func (fs *FileSystem) BaseDir() string {
	return fs.baseDir
}

// UploadPath returns the filesystem path for an upload.
func (fs *FileSystem) UploadPath(filename string) string {
	return filepath.Join(fs.baseDir, filename)
}

// PublicURL returns the URL the upload is served under, relative to mountPath.
func (fs *FileSystem) PublicURL(mountPath, filename string) string {
	return path.Join(mountPath, url.PathEscape(filename))
}

// SaveUpload writes an upload to disk and returns its path.
// The name must be a bare file name; directory components are rejected
// rather than followed.
func (fs *FileSystem) SaveUpload(filename string, data []byte) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	p := fs.UploadPath(filename)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return p, nil
}

// ReadUpload reads a previously saved upload.
func (fs *FileSystem) ReadUpload(filename string) ([]byte, error) {
	data, err := os.ReadFile(fs.UploadPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("upload %s: %w", filename, ErrNotFound)
		}
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return data, nil
}

// Exists checks if an upload exists on disk.
func (fs *FileSystem) Exists(filename string) bool {
	_, err := os.Stat(fs.UploadPath(filename))
	return err == nil
}
