package upgrade

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// ChecksumsFile is the release asset listing the SHA-256 digest of every
// binary asset in the release.
const ChecksumsFile = "checksums.txt"

// checksumParts is the expected number of parts in a checksum line (hash + filename).
const checksumParts = 2

// ParseChecksums parses checksums.txt content into a map of filename -> hex
// digest. Expected format: "hash  filename" (two spaces between hash and
// filename); malformed lines are skipped.
func ParseChecksums(content string) map[string]string {
	result := make(map[string]string)

	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "  ", checksumParts)
		if len(parts) != checksumParts {
			continue
		}

		hash := strings.TrimSpace(parts[0])
		filename := strings.TrimSpace(parts[1])

		if hash != "" && filename != "" {
			result[filename] = hash
		}
	}

	return result
}

// VerifyFileChecksum computes the SHA-256 of a file and compares it to the
// expected hex digest.
//
//nolint:gosec // G304: filePath is the binary we just downloaded, not user-controlled
func VerifyFileChecksum(filePath, expectedHex string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrap(err, "opening file for checksum")
	}
	defer f.Close() //nolint:errcheck // read-only file

	h := sha256.New()

	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrap(err, "computing checksum")
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expectedHex) {
		return errors.Errorf(
			"checksum mismatch: expected %s, got %s",
			expectedHex, actual,
		)
	}

	return nil
}
