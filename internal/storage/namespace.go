package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// namespacePrefixLen is how many leading bytes of file content
// participate in the namespace hash. Enough to distinguish different
// documents at the same path over time, cheap enough to read on every
// open.
const namespacePrefixLen = 4096

// DeriveNamespace computes the stable per-document namespace key:
// a SHA-256 over the cleaned absolute file path and a fixed-length
// prefix of the file content. The same physical file reopened later
// resolves to the same namespace even if its tail changed; a
// renamed-but-identical file is treated as a distinct document because
// the path differs. That trade-off is deliberate: content-addressed
// identity is not a goal.
func DeriveNamespace(path string) (string, error) {
	if err := validateString(path, "path"); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve document path: %w", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	prefix := make([]byte, namespacePrefixLen)
	n, err := io.ReadFull(f, prefix)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read document prefix: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(filepath.Clean(abs)))
	h.Write([]byte{0})
	h.Write(prefix[:n])

	return hex.EncodeToString(h.Sum(nil))[:32], nil
}
