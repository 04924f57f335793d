// Package state persists the small set of durable values the CLI keeps
// between invocations: the release channel and install metadata.
package state

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

const (
	// FileMode is the file mode for the state file (user read/write only).
	FileMode = 0o600

	// DirMode is the file mode for the state directory (user rwx only).
	DirMode = 0o700

	// DefaultChannel is the release channel used before any explicit selection.
	DefaultChannel = "stable"
)

// InstallInfo records how and where the CLI was last installed.
type InstallInfo struct {
	Method  string `koanf:"method"  toml:"method"`
	Path    string `koanf:"path"    toml:"path"`
	Version string `koanf:"version" toml:"version"`
}

// Store provides access to the durable local state.
type Store interface {
	// Channel returns the persisted release channel.
	Channel() string

	// SetChannel persists the release channel.
	SetChannel(channel string) error

	// InstallInfo returns the persisted install metadata.
	InstallInfo() InstallInfo

	// SetInstallInfo persists the install metadata.
	SetInstallInfo(info InstallInfo) error
}

// stateData is the on-disk shape of the state file.
type stateData struct {
	Channel string      `koanf:"channel" toml:"channel"`
	Install InstallInfo `koanf:"install" toml:"install"`
}

// FileStore implements Store backed by a TOML file.
type FileStore struct {
	path string
	data stateData
}

// NewFileStore loads (or initializes) the state file at path.
// A missing file is not an error; defaults apply until the first write.
func NewFileStore(path string) (*FileStore, error) {
	k := koanf.New(".")

	// Defaults first, then the file layered on top.
	defaults := map[string]any{
		"channel": DefaultChannel,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "loading state defaults")
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
			return nil, errors.Wrapf(err, "parsing state file %s", path)
		}
	}

	var data stateData
	if err := k.Unmarshal("", &data); err != nil {
		return nil, errors.Wrap(err, "unmarshaling state")
	}

	if data.Channel == "" {
		data.Channel = DefaultChannel
	}

	return &FileStore{path: path, data: data}, nil
}

// Channel returns the persisted release channel.
func (s *FileStore) Channel() string {
	return s.data.Channel
}

// SetChannel persists the release channel.
func (s *FileStore) SetChannel(channel string) error {
	s.data.Channel = channel

	return s.save()
}

// InstallInfo returns the persisted install metadata.
func (s *FileStore) InstallInfo() InstallInfo {
	return s.data.Install
}

// SetInstallInfo persists the install metadata.
func (s *FileStore) SetInstallInfo(info InstallInfo) error {
	s.data.Install = info

	return s.save()
}

// save writes the state file atomically (temp file + rename).
func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), DirMode); err != nil {
		return errors.Wrap(err, "creating state directory")
	}

	raw, err := toml.Marshal(s.data)
	if err != nil {
		return errors.Wrap(err, "marshaling state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, FileMode); err != nil {
		return errors.Wrap(err, "writing state file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)

		return errors.Wrap(err, "replacing state file")
	}

	return nil
}
