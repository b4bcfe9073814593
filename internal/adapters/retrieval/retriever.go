// Package retrieval fetches remote media to local storage, abstracting
// the origin: an S3 object reference or a presigned HTTP(S) URL.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/framehook/captiond/internal/core/domain"
)

// Client dispatches fetches by reference scheme. Both branches share the
// process-wide bounded connection pool; no per-call clients are built.
type Client struct {
	logger *slog.Logger
	http   *HTTPFetcher
	s3     *S3Fetcher
}

func NewClient(logger *slog.Logger, httpFetcher *HTTPFetcher, s3Fetcher *S3Fetcher) *Client {
	return &Client{logger: logger, http: httpFetcher, s3: s3Fetcher}
}

// Fetch downloads source to dest. A zero-byte result is rejected: a
// partial or empty download must not reach the transcoder.
func (c *Client) Fetch(ctx context.Context, source, dest string) error {
	var err error
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		err = c.http.Fetch(ctx, source, dest)
	case strings.HasPrefix(source, "s3://"):
		err = c.s3.Fetch(ctx, source, dest)
	default:
		err = fmt.Errorf("URL must be s3:// or http(s)://")
	}
	if err != nil {
		c.logger.Error("download failed", "source", source, "error", err)
		return &domain.RetrievalError{Source: source, Err: err}
	}

	info, err := os.Stat(dest)
	if err != nil {
		return &domain.RetrievalError{Source: source, Err: fmt.Errorf("stat downloaded file: %w", err)}
	}
	if info.Size() == 0 {
		return &domain.RetrievalError{Source: source, Err: fmt.Errorf("downloaded file is empty")}
	}

	c.logger.Info("downloaded", "source", source, "dest", dest, "bytes", info.Size())
	return nil
}

// ParseS3Path splits s3://bucket/key into its parts.
func ParseS3Path(s3Path string) (bucket, key string, err error) {
	if !strings.HasPrefix(s3Path, "s3://") {
		return "", "", fmt.Errorf("S3 path must start with 's3://'")
	}
	rest := strings.TrimPrefix(s3Path, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("S3 path missing bucket or key: %s", s3Path)
	}
	return parts[0], parts[1], nil
}
