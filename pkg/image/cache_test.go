package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

func TestEnsure_DownloadsWhenMissing(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.Write([]byte("base image content"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "images", "base.qcow2")
	cache := NewCache(srv.URL, path, "")

	if cache.State() != types.ImageStateMissing {
		t.Fatalf("State() = %v, want missing", cache.State())
	}

	if err := cache.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if cache.State() != types.ImageStatePresent {
		t.Errorf("State() = %v, want present", cache.State())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "base image content" {
		t.Errorf("image content = %q, want %q", data, "base image content")
	}

	if got := atomic.LoadInt64(&requests); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestEnsure_IdempotentWhenPresent(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.Write([]byte("base image content"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "base.qcow2")
	cache := NewCache(srv.URL, path, "")

	if err := cache.Ensure(context.Background()); err != nil {
		t.Fatalf("first Ensure() error = %v", err)
	}

	// Second run against a present image must trigger zero network activity
	if err := cache.Ensure(context.Background()); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}

	if got := atomic.LoadInt64(&requests); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestEnsure_FailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	oldDelay := retryBaseDelay
	retryBaseDelay = time.Millisecond
	defer func() { retryBaseDelay = oldDelay }()

	dir := t.TempDir()
	path := filepath.Join(dir, "base.qcow2")
	cache := NewCache(srv.URL, path, "")

	err := cache.Ensure(context.Background())
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("Ensure() error = %v, want ErrTransferFailed", err)
	}

	if cache.State() != types.ImageStateMissing {
		t.Errorf("State() = %v, want missing after failure", cache.State())
	}

	// No partial file may remain
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not clean after failed transfer: %v", entries)
	}
}

func TestEnsure_RetriesTransientFailure(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) == 1 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("base image content"))
	}))
	defer srv.Close()

	oldDelay := retryBaseDelay
	retryBaseDelay = time.Millisecond
	defer func() { retryBaseDelay = oldDelay }()

	path := filepath.Join(t.TempDir(), "base.qcow2")
	cache := NewCache(srv.URL, path, "")

	if err := cache.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if got := atomic.LoadInt64(&requests); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
}

func TestEnsure_ChecksumVerified(t *testing.T) {
	content := []byte("verified image")
	sum := sha256.Sum256(content)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "base.qcow2")
	cache := NewCache(srv.URL, path, hex.EncodeToString(sum[:]))

	if err := cache.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if cache.State() != types.ImageStatePresent {
		t.Errorf("State() = %v, want present", cache.State())
	}
}

func TestEnsure_ChecksumMismatchNotRetried(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.Write([]byte("tampered content"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "base.qcow2")
	cache := NewCache(srv.URL, path, "0000000000000000000000000000000000000000000000000000000000000000")

	err := cache.Ensure(context.Background())
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Ensure() error = %v, want ErrChecksumMismatch", err)
	}

	if got := atomic.LoadInt64(&requests); got != 1 {
		t.Errorf("request count = %d, want 1 (no retry on mismatch)", got)
	}
	if cache.State() != types.ImageStateMissing {
		t.Errorf("State() = %v, want missing", cache.State())
	}
}
