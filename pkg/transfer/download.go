package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chimebox/chimebox/pkg/storage"
)

// Downloader pulls an audio payload from an HTTP source straight into
// storage. This path bypasses the chunk/ACK protocol and relies on the
// transport's own flow control.
type Downloader struct {
	store  Store
	client *http.Client
	log    *slog.Logger
}

// NewDownloader creates a Downloader over the given store. client may be
// nil, in which case a client with a 30s timeout is used.
func NewDownloader(store Store, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Downloader{store: store, client: client, log: slog.Default()}
}

// SetLogger replaces the downloader logger.
func (d *Downloader) SetLogger(log *slog.Logger) { d.log = log }

// Download fetches url and stores it under the name derived from id.
// An empty id gets a generated one. Returns the stored name and size.
func (d *Downloader) Download(ctx context.Context, url, id string) (string, int64, error) {
	if id == "" {
		id = uuid.NewString()
	}
	name := TargetName(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("transfer: download %s: %w", url, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("transfer: download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("transfer: download %s: unexpected status %s", url, resp.Status)
	}

	if err := d.store.Delete(ctx, name); err != nil {
		d.log.Warn("transfer: delete existing file failed", "name", name, "err", err)
	}
	w, err := d.store.Write(ctx, name)
	if err != nil {
		return "", 0, fmt.Errorf("transfer: open %s: %w", name, err)
	}

	n, err := io.Copy(w, resp.Body)
	if errors.Is(err, storage.ErrNoSpace) {
		// Same escalation as the chunk path: reformat once and refetch
		// from scratch rather than resume mid-body.
		w.Close()
		d.log.Warn("transfer: download out of space, formatting storage",
			"name", name, "url", url)
		if ferr := d.store.Format(ctx); ferr != nil {
			return "", 0, fmt.Errorf("transfer: format after no-space: %w", ferr)
		}
		return d.fetchOnce(ctx, url, name)
	}
	if err != nil {
		w.Close()
		return "", 0, fmt.Errorf("transfer: download %s: %w", url, err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("transfer: close %s: %w", name, err)
	}
	d.log.Info("transfer: download complete", "name", name, "size", n, "url", url)
	return name, n, nil
}

// fetchOnce performs a single fetch-and-store attempt with no recovery.
func (d *Downloader) fetchOnce(ctx context.Context, url, name string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("transfer: download %s: %w", url, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("transfer: download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("transfer: download %s: unexpected status %s", url, resp.Status)
	}
	w, err := d.store.Write(ctx, name)
	if err != nil {
		return "", 0, fmt.Errorf("transfer: open %s: %w", name, err)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		w.Close()
		return "", 0, fmt.Errorf("transfer: download %s: %w", url, err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("transfer: close %s: %w", name, err)
	}
	d.log.Info("transfer: download complete", "name", name, "size", n, "url", url)
	return name, n, nil
}
