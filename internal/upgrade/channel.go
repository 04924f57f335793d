package upgrade

// Channel is a named release track governing which registry and
// version-naming scheme an upgrade uses.
type Channel string

const (
	// ChannelStable is the default release track.
	ChannelStable Channel = "stable"

	// ChannelNightly is the rolling pre-release track. Nightly builds are
	// asset-only and never published to a package registry.
	ChannelNightly Channel = "nightly"
)

// ParseChannel parses a channel name. Returns false for anything that is not
// a known channel (e.g. a version string).
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelStable, ChannelNightly:
		return Channel(s), true
	default:
		return "", false
	}
}
