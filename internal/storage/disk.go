package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	DefaultBaseDir    = "./uploads"
	DefaultPublicPath = "/static/uploads"
)

var ErrInvalidKey = errors.New("storage: invalid object key")

// Disk stores objects under baseDir/<bucket>/<key> and serves them from
// publicBase/<bucket>/<key> (a static route or a CDN in front of baseDir).
type Disk struct {
	baseDir    string
	publicBase string
}

func NewDisk(baseDir, publicBase string) *Disk {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	if publicBase == "" {
		publicBase = DefaultPublicPath
	}
	return &Disk{baseDir: baseDir, publicBase: strings.TrimRight(publicBase, "/")}
}

// BaseDir is the directory served under the public base.
func (d *Disk) BaseDir() string { return d.baseDir }

// Upload writes data atomically: a temp file in the target directory is
// renamed into place, so readers never see a partial object.
func (d *Disk) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := objectPath(bucket, key)
	if err != nil {
		return err
	}
	abs := filepath.Join(d.baseDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage: move file: %w", err)
	}
	return nil
}

func (d *Disk) PublicURL(bucket, key string) string {
	return d.publicBase + "/" + bucket + "/" + key
}

// objectPath validates bucket and key and joins them with a slash.
// Keys may contain "/" but must stay inside the bucket.
func objectPath(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidKey, bucket)
	}
	if key == "" || strings.Contains(key, `\`) || path.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return bucket + "/" + key, nil
}
