package registry

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
)

const (
	// NpmPackage is the name of the CLI on the npm registry.
	NpmPackage = "tkt-cli"

	// npmRegistryURL is the public npm registry.
	npmRegistryURL = "https://registry.npmjs.org"
)

// ErrVersionFieldMissing is returned when the registry response lacks the
// expected version field.
var ErrVersionFieldMissing = errors.New("registry response missing version field")

// PackageClient queries the package registry.
type PackageClient interface {
	// LatestVersion returns the version published under the "latest" dist-tag.
	LatestVersion(ctx context.Context) (string, error)

	// VersionExists probes whether an exact version is published.
	VersionExists(ctx context.Context, version string) (bool, error)
}

// NpmClient implements PackageClient against the npm registry.
type NpmClient struct {
	client  *http.Client
	baseURL string
	pkg     string
}

// NewNpmClient creates a PackageClient for the tkt npm package.
// Pass nil to use the default HTTP client.
func NewNpmClient(httpClient *http.Client) *NpmClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &NpmClient{
		client:  httpClient,
		baseURL: npmRegistryURL,
		pkg:     NpmPackage,
	}
}

// NewNpmClientForRegistry creates a client against a custom registry base URL
// and package name (used in tests against httptest servers).
func NewNpmClientForRegistry(httpClient *http.Client, baseURL, pkg string) *NpmClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &NpmClient{client: httpClient, baseURL: baseURL, pkg: pkg}
}

// packageVersion is the subset of npm package metadata we read.
type packageVersion struct {
	Version string `json:"version"`
}

// LatestVersion returns the version published under the "latest" dist-tag.
func (c *NpmClient) LatestVersion(ctx context.Context) (string, error) {
	url := c.baseURL + "/" + c.pkg + "/latest"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetching latest package version")
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("registry returned HTTP %d", resp.StatusCode)
	}

	var meta packageVersion
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", errors.Wrap(err, "decoding registry response")
	}

	if meta.Version == "" {
		return "", ErrVersionFieldMissing
	}

	return meta.Version, nil
}

// VersionExists probes whether an exact version is published.
// True iff the registry answers 2xx to a HEAD on the version document.
func (c *NpmClient) VersionExists(ctx context.Context, version string) (bool, error) {
	url := c.baseURL + "/" + c.pkg + "/" + version

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, errors.Wrap(err, "creating request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "probing package version")
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices, nil
}
