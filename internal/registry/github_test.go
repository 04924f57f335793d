package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/tkt/internal/registry"
)

var _ = Describe("GitHubClient", func() {
	newClient := func(handler http.HandlerFunc) (*registry.GitHubClient, *httptest.Server) {
		server := httptest.NewServer(handler)

		client, err := registry.NewGitHubClientForRepo(
			server.Client(), server.URL, "smykla-skalski", "tkt")
		Expect(err).NotTo(HaveOccurred())

		return client, server
	}

	Describe("LatestRelease", func() {
		It("returns the latest published release", func() {
			client, server := newClient(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(HaveSuffix("/repos/smykla-skalski/tkt/releases/latest"))
				_, _ = w.Write([]byte(`{"tag_name":"v1.4.0","name":"v1.4.0"}`))
			})
			defer server.Close()

			release, err := client.LatestRelease(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(release.TagName).To(Equal("v1.4.0"))
			Expect(release.Name).To(Equal("v1.4.0"))
		})

		It("maps a missing latest release to ErrReleaseNotFound", func() {
			client, server := newClient(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			defer server.Close()

			_, err := client.LatestRelease(context.Background())

			Expect(errors.Is(err, registry.ErrReleaseNotFound)).To(BeTrue())
		})
	})

	Describe("ReleaseByTag", func() {
		It("returns the release for an exact tag", func() {
			client, server := newClient(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(HaveSuffix("/releases/tags/nightly"))
				_, _ = w.Write([]byte(`{"tag_name":"nightly","name":"1.5.0-nightly.20260829"}`))
			})
			defer server.Close()

			release, err := client.ReleaseByTag(context.Background(), "nightly")

			Expect(err).NotTo(HaveOccurred())
			Expect(release.TagName).To(Equal("nightly"))
			Expect(release.Name).To(Equal("1.5.0-nightly.20260829"))
		})

		It("maps a missing tag to ErrReleaseNotFound", func() {
			client, server := newClient(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			defer server.Close()

			_, err := client.ReleaseByTag(context.Background(), "v9.9.9")

			Expect(errors.Is(err, registry.ErrReleaseNotFound)).To(BeTrue())
		})
	})
})
