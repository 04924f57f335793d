package state_test

import (
	"os"
	"path/filepath"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/tkt/internal/state"
)

var _ = Describe("FileStore", func() {
	var statePath string

	BeforeEach(func() {
		statePath = filepath.Join(GinkgoT().TempDir(), "tkt", "state.toml")
	})

	It("applies defaults when the state file does not exist", func() {
		store, err := state.NewFileStore(statePath)

		Expect(err).NotTo(HaveOccurred())
		Expect(store.Channel()).To(Equal(state.DefaultChannel))
		Expect(store.InstallInfo()).To(Equal(state.InstallInfo{}))
	})

	It("persists the channel across reloads", func() {
		store, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())

		Expect(store.SetChannel("nightly")).To(Succeed())

		reloaded, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.Channel()).To(Equal("nightly"))
	})

	It("persists install metadata across reloads", func() {
		store, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())

		info := state.InstallInfo{
			Method:  "curl",
			Path:    "/home/u/.local/bin/tkt",
			Version: "1.4.0",
		}
		Expect(store.SetInstallInfo(info)).To(Succeed())

		reloaded, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded.InstallInfo()).To(Equal(info))
		Expect(reloaded.Channel()).To(Equal(state.DefaultChannel))
	})

	It("creates the state directory on first write", func() {
		store, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())

		Expect(store.SetChannel("stable")).To(Succeed())

		info, err := os.Stat(filepath.Dir(statePath))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("writes the state file user-only", func() {
		if runtime.GOOS == "windows" {
			Skip("permission bits are not meaningful on windows")
		}

		store, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.SetChannel("nightly")).To(Succeed())

		info, err := os.Stat(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(state.FileMode)))
	})

	It("leaves no temp file behind after a save", func() {
		store, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.SetChannel("nightly")).To(Succeed())

		_, err = os.Stat(statePath + ".tmp")
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("rejects a malformed state file", func() {
		Expect(os.MkdirAll(filepath.Dir(statePath), 0o700)).To(Succeed())
		Expect(os.WriteFile(statePath, []byte("channel = [not toml"), 0o600)).To(Succeed())

		_, err := state.NewFileStore(statePath)
		Expect(err).To(HaveOccurred())
	})

	It("fills in the default channel when the file omits it", func() {
		Expect(os.MkdirAll(filepath.Dir(statePath), 0o700)).To(Succeed())
		Expect(os.WriteFile(statePath, []byte("[install]\nmethod = \"npm\"\n"), 0o600)).To(Succeed())

		store, err := state.NewFileStore(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Channel()).To(Equal(state.DefaultChannel))
		Expect(store.InstallInfo().Method).To(Equal("npm"))
	})
})
