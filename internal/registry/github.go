// Package registry provides clients for the two remote registries consulted
// during upgrades: GitHub releases (binary assets) and the npm registry
// (package-manager installs).
package registry

import (
	"context"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	gogithub "github.com/google/go-github/v84/github"
)

const (
	// GitHubOwner is the repository owner on GitHub.
	GitHubOwner = "smykla-skalski"

	// GitHubRepo is the repository name on GitHub.
	GitHubRepo = "tkt"

	// NightlyTag is the rolling tag that always points at the latest
	// nightly build. Nightly releases are asset-only; the release name
	// carries the concrete version.
	NightlyTag = "nightly"
)

// ErrReleaseNotFound is returned when the requested release/tag does not exist.
var ErrReleaseNotFound = errors.New("release not found")

// Release describes a GitHub release.
type Release struct {
	// TagName is the git tag of the release (e.g. "v1.3.0", "nightly").
	TagName string

	// Name is the release title. For the rolling nightly tag this carries
	// the concrete build version.
	Name string
}

// ReleaseClient queries the binary-asset registry.
type ReleaseClient interface {
	// LatestRelease returns the latest published (non-prerelease) release.
	LatestRelease(ctx context.Context) (*Release, error)

	// ReleaseByTag returns the release for an exact tag, or
	// ErrReleaseNotFound when the tag does not exist.
	ReleaseByTag(ctx context.Context, tag string) (*Release, error)
}

// GitHubClient implements ReleaseClient using the go-github SDK.
type GitHubClient struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// githubToken retrieves a GitHub token from the environment, if any.
// Unauthenticated access works but is rate-limited more aggressively.
func githubToken() string {
	if token := os.Getenv("GH_TOKEN"); token != "" {
		return token
	}

	return os.Getenv("GITHUB_TOKEN")
}

// NewGitHubClient creates a ReleaseClient for the tkt repository.
// Pass nil to use the default HTTP transport.
func NewGitHubClient(httpClient *http.Client) *GitHubClient {
	client := gogithub.NewClient(httpClient)

	if token := githubToken(); token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHubClient{
		client: client,
		owner:  GitHubOwner,
		repo:   GitHubRepo,
	}
}

// NewGitHubClientForRepo creates a client against a custom repo and API base
// URL (used in tests against httptest servers).
func NewGitHubClientForRepo(httpClient *http.Client, baseURL, owner, repo string) (*GitHubClient, error) {
	client := gogithub.NewClient(httpClient)

	if baseURL != "" {
		var err error

		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, errors.Wrap(err, "setting base URL")
		}
	}

	return &GitHubClient{client: client, owner: owner, repo: repo}, nil
}

// LatestRelease returns the latest published release.
func (c *GitHubClient) LatestRelease(ctx context.Context) (*Release, error) {
	release, resp, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrReleaseNotFound
		}

		return nil, errors.Wrap(err, "fetching latest release")
	}

	return toRelease(release), nil
}

// ReleaseByTag returns the release for an exact tag.
func (c *GitHubClient) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	release, resp, err := c.client.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrReleaseNotFound
		}

		return nil, errors.Wrapf(err, "fetching release %s", tag)
	}

	return toRelease(release), nil
}

// toRelease converts a go-github release to the narrow local type.
func toRelease(r *gogithub.RepositoryRelease) *Release {
	return &Release{
		TagName: r.GetTagName(),
		Name:    r.GetName(),
	}
}
