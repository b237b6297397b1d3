// Package checksum provides the content hash used as the change-detection
// key for incremental indexing. It is a change marker, not a security
// primitive.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Prefix identifies the hash algorithm in stored checksum strings.
const Prefix = "sha256:"

// Compute returns the checksum of the given bytes as "sha256:<hex>".
// Identical input always produces identical output.
func Compute(data []byte) string {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:])
}

// ComputeFile reads the file at path and returns its checksum.
func ComputeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read file for checksum: %w", err)
	}
	return Compute(data), nil
}
