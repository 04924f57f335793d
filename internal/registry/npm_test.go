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

var _ = Describe("NpmClient", func() {
	newClient := func(handler http.HandlerFunc) (*registry.NpmClient, *httptest.Server) {
		server := httptest.NewServer(handler)

		return registry.NewNpmClientForRegistry(server.Client(), server.URL, "tkt-cli"), server
	}

	Describe("LatestVersion", func() {
		It("reads the version from the latest dist-tag document", func() {
			var requestedPath string

			client, server := newClient(func(w http.ResponseWriter, r *http.Request) {
				requestedPath = r.URL.Path
				_, _ = w.Write([]byte(`{"name":"tkt-cli","version":"1.4.0"}`))
			})
			defer server.Close()

			version, err := client.LatestVersion(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal("1.4.0"))
			Expect(requestedPath).To(Equal("/tkt-cli/latest"))
		})

		It("fails when the response has no version field", func() {
			client, server := newClient(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"name":"tkt-cli"}`))
			})
			defer server.Close()

			_, err := client.LatestVersion(context.Background())

			Expect(errors.Is(err, registry.ErrVersionFieldMissing)).To(BeTrue())
		})

		It("fails on a non-200 response", func() {
			client, server := newClient(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			})
			defer server.Close()

			_, err := client.LatestVersion(context.Background())

			Expect(err).To(MatchError(ContainSubstring("HTTP 503")))
		})
	})

	Describe("VersionExists", func() {
		It("probes the version document with a HEAD request", func() {
			var method, path string

			client, server := newClient(func(w http.ResponseWriter, r *http.Request) {
				method = r.Method
				path = r.URL.Path
			})
			defer server.Close()

			exists, err := client.VersionExists(context.Background(), "1.2.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
			Expect(method).To(Equal(http.MethodHead))
			Expect(path).To(Equal("/tkt-cli/1.2.0"))
		})

		It("reports an unpublished version as absent without error", func() {
			client, server := newClient(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			defer server.Close()

			exists, err := client.VersionExists(context.Background(), "9.9.9")

			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})
})
