package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"kcdev/pkg/logging"
)

const (
	maxDownloadRetries = 3
	downloadBufferSize = 32 * 1024

	// progressStep is the percentage granularity of download progress logs.
	progressStep = 5
)

// retryBaseDelay is the backoff unit between download attempts; swapped in
// tests to keep them fast.
var retryBaseDelay = time.Second

// downloadFile fetches url into dest, retrying transient failures with
// exponential backoff. The destination file is reset between attempts, so a
// successful return always means a complete download.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer file.Close()

	var lastErr error
	for attempt := 1; attempt <= maxDownloadRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<uint(attempt-2)) * retryBaseDelay
			logging.Warn("Installer", "Download attempt %d/%d failed (%v), retrying in %s",
				attempt-1, maxDownloadRetries, lastErr, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("failed to rewind %s: %w", dest, err)
			}
			if err := file.Truncate(0); err != nil {
				return fmt.Errorf("failed to truncate %s: %w", dest, err)
			}
		}

		if err := downloadOnce(ctx, client, url, file); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("download failed after %d attempts: %w", maxDownloadRetries, lastErr)
}

// downloadOnce performs a single streaming download into w, logging progress
// in progressStep increments when the server announces a content length.
func downloadOnce(ctx context.Context, client *http.Client, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	total := resp.ContentLength
	buf := make([]byte, downloadBufferSize)
	var written int64
	lastLogged := -progressStep

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write failed: %w", err)
			}
			written += int64(n)

			if total > 0 {
				percent := int(written * 100 / total)
				if percent > 100 {
					percent = 100
				}
				if percent >= lastLogged+progressStep {
					lastLogged = percent - percent%progressStep
					logging.Info("Installer", "Download progress: %d%% (%.1f MB)",
						lastLogged, float64(written)/(1024*1024))
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read failed: %w", readErr)
		}
	}

	if total > 0 && written != total {
		return fmt.Errorf("incomplete download: got %d of %d bytes", written, total)
	}

	logging.Debug("Installer", "Downloaded %d bytes from %s", written, url)
	return nil
}
