package upgrade

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
)

// downloadFileMode is the permission mode for the temp download file; the
// replacer sets the final executable bit.
const downloadFileMode = 0o644

// Downloader fetches binary assets to a temp path.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a new Downloader with the given HTTP client.
// Pass nil to use the default client.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}

	return &Downloader{client: client}
}

// Download streams url to tempPath. Any leftover temp file from an
// interrupted prior attempt is removed first.
//
//nolint:gosec // G107/G304: URL and tempPath are constructed internally by the upgrader
func (d *Downloader) Download(ctx context.Context, url, tempPath string) error {
	if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "removing leftover download %s", tempPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return normalizeNetwork(err, "downloading %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return NewError(KindExecutionFailed, "download failed: HTTP %d", resp.StatusCode)
	}

	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, downloadFileMode)
	if err != nil {
		return errors.Wrapf(err, "creating %s", tempPath)
	}

	if _, copyErr := io.Copy(out, resp.Body); copyErr != nil {
		_ = out.Close()
		_ = os.Remove(tempPath)

		return normalizeNetwork(copyErr, "writing download to %s", tempPath)
	}

	if closeErr := out.Close(); closeErr != nil {
		return errors.Wrapf(closeErr, "closing %s", tempPath)
	}

	return nil
}

// DownloadString fetches url into memory. Used for small release metadata
// assets such as the checksums file.
func (d *Downloader) DownloadString(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", normalizeNetwork(err, "downloading %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", NewError(KindExecutionFailed, "download failed: HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", normalizeNetwork(err, "reading %s", url)
	}

	return string(raw), nil
}
