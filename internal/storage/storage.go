// Package storage archives every recomputed intelligence view outside the
// database, either to S3 with a DynamoDB index or to gzip files on disk.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/domain"
	"github.com/ignite/leadintel/internal/service/intelligence"
)

const stampLayout = "20060102T150405.000000000Z"

// New returns the archive backend selected by cfg.Type.
func New(ctx context.Context, cfg config.ArchiveConfig) (intelligence.Archiver, error) {
	switch cfg.Type {
	case "aws":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("archive: s3_bucket is required for type aws")
		}
		return NewAWSArchive(ctx, cfg)
	case "local":
		return NewLocalArchive(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("archive: unknown type %q", cfg.Type)
	}
}

// LocalArchive writes snapshots under a directory, mirroring the S3 layout.
type LocalArchive struct {
	root string
}

// NewLocalArchive creates root if needed.
func NewLocalArchive(root string) (*LocalArchive, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &LocalArchive{root: root}, nil
}

func (a *LocalArchive) Archive(_ context.Context, orgID string, view *domain.ProfileView) error {
	body, err := encodeSnapshot(view)
	if err != nil {
		return err
	}
	p := filepath.Join(a.root, filepath.FromSlash(objectKey("", orgID, view)))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// objectKey is prefix/<org>/<subject>/<analyzedAt>.json.gz. The colon in
// the subject key is replaced so the path is safe on every filesystem.
func objectKey(prefix, orgID string, view *domain.ProfileView) string {
	subject := strings.ReplaceAll(view.Profile.Subject().Key(), ":", "_")
	name := snapshotStamp(view.Profile.LastAnalyzedAt) + ".json.gz"
	return path.Join(prefix, safeSegment(orgID), safeSegment(subject), name)
}

func safeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func snapshotStamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

func encodeSnapshot(view *domain.ProfileView) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(view); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
