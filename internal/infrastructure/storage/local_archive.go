package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	reportapp "github.com/erp/dues/internal/application/report"
)

var _ reportapp.ReportArchive = (*LocalReportArchive)(nil)

// LocalReportArchive writes exported reports below a directory.
// It is used for single-box deployments and development when no bucket is configured.
type LocalReportArchive struct {
	root string
}

// NewLocalReportArchive creates the root directory if needed
func NewLocalReportArchive(root string) (*LocalReportArchive, error) {
	if root == "" {
		return nil, errors.New("archive directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve archive directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalReportArchive{root: abs}, nil
}

// Put writes body to root/key
func (a *LocalReportArchive) Put(_ context.Context, key string, body []byte, _ string) error {
	p, err := a.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// DownloadURL returns a file:// URL for key
func (a *LocalReportArchive) DownloadURL(_ context.Context, key string) (string, error) {
	p, err := a.pathFor(key)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String(), nil
}

// Root returns the archive directory
func (a *LocalReportArchive) Root() string {
	return a.root
}

func (a *LocalReportArchive) pathFor(key string) (string, error) {
	if key == "" {
		return "", errors.New("report key is required")
	}
	p := filepath.Join(a.root, filepath.FromSlash(key))
	if p != a.root && !strings.HasPrefix(p, a.root+string(filepath.Separator)) {
		return "", fmt.Errorf("report key %q escapes the archive directory", key)
	}
	return p, nil
}
