package image

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
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/log"
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

// ErrTransferFailed indicates the base image download did not complete.
// The cache is left in its prior state.
var ErrTransferFailed = errors.New("base image transfer failed")

// ErrChecksumMismatch indicates the downloaded image did not match the
// configured SHA-256 digest
var ErrChecksumMismatch = errors.New("base image checksum mismatch")

// errPermanent marks download failures that retrying cannot fix
var errPermanent = errors.New("permanent transfer error")

var (
	// downloadAttempts bounds the retry loop for the download
	downloadAttempts = 3

	// retryBaseDelay is the initial backoff between download attempts
	retryBaseDelay = 2 * time.Second
)

// Cache ensures a shared read-only base image is present locally. One Cache
// is shared by every instance in a run; the image is never mutated after it
// becomes present.
type Cache struct {
	URL    string
	Path   string
	SHA256 string // Optional; empty skips verification

	client *http.Client
	logger zerolog.Logger
}

// NewCache creates a cache for the given source URL and canonical local path
func NewCache(url, path, sha256sum string) *Cache {
	return &Cache{
		URL:    url,
		Path:   path,
		SHA256: sha256sum,
		client: http.DefaultClient,
		logger: log.WithComponent("image-cache"),
	}
}

// State reports whether the base image is present at the canonical path
func (c *Cache) State() types.ImageState {
	if _, err := os.Stat(c.Path); err == nil {
		return types.ImageStatePresent
	}
	return types.ImageStateMissing
}

// Ensure makes the base image present. Presence is decided by path existence
// only; a present image triggers no network activity. A missing image is
// fetched to a temporary file and atomically renamed into place on full
// success, so an interrupted transfer never leaves a partial file at the
// canonical path.
func (c *Cache) Ensure(ctx context.Context) error {
	if c.State() == types.ImageStatePresent {
		c.logger.Debug().Str("path", c.Path).Msg("Base image already present")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create image directory: %v", ErrTransferFailed, err)
	}

	c.logger.Info().Str("url", c.URL).Str("path", c.Path).Msg("Downloading base image")

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if attempt > 1 {
			delay := retryBaseDelay << (attempt - 2)
			c.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Retrying base image download")
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrTransferFailed, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = c.download(ctx)
		if lastErr == nil {
			c.logger.Info().Str("path", c.Path).Msg("Base image present")
			return nil
		}
		// A checksum mismatch means the source is serving wrong content;
		// retrying would fetch the same bytes again.
		if errors.Is(lastErr, ErrChecksumMismatch) {
			return lastErr
		}
		if errors.Is(lastErr, errPermanent) {
			return fmt.Errorf("%w: %v", ErrTransferFailed, lastErr)
		}
	}

	return fmt.Errorf("%w: %v", ErrTransferFailed, lastErr)
}

// download performs one fetch attempt into a temporary file and publishes it
func (c *Cache) download(ctx context.Context) error {
	tmpPath := fmt.Sprintf("%s.partial-%s", c.Path, uuid.New().String()[:8])

	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tmp.Close()
		// Client errors are not transient; server errors may be
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("%w: status %s from %s", errPermanent, resp.Status, c.URL)
		}
		return fmt.Errorf("unexpected status %s from %s", resp.Status, c.URL)
	}

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("transfer interrupted after %d bytes: %w", n, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if c.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != c.SHA256 {
			return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, c.SHA256)
		}
	}

	// Atomic publish: the canonical path only ever holds a complete image
	if err := os.Rename(tmpPath, c.Path); err != nil {
		return fmt.Errorf("failed to publish image: %w", err)
	}

	c.logger.Debug().Int64("bytes", n).Msg("Download complete")
	return nil
}
