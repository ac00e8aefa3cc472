package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// IDGenerator produces deterministic chunk ids, disambiguating collisions
// within one build. It holds state only for the duration of one build and
// must be discarded (or Reset) between builds.
type IDGenerator struct {
	repoID string
	seen   map[string]string // base id -> content hash of the first emission
}

// NewIDGenerator creates a generator scoped to one build for one repo.
func NewIDGenerator(repoID string) *IDGenerator {
	return &IDGenerator{repoID: repoID, seen: make(map[string]string)}
}

// Reset discards all per-build state, allowing the generator to be reused
// for a second build without carrying over collision history.
func (g *IDGenerator) Reset() {
	g.seen = make(map[string]string)
}

// normalizeFQN replaces path separators with dots.
func normalizeFQN(fqn string) string {
	fqn = strings.ReplaceAll(fqn, "/", ".")
	fqn = strings.ReplaceAll(fqn, "\\", ".")
	return fqn
}

// Generate returns the id for (kind, fqn, contentHash). On first emission
// of a given (repo, kind, fqn) within this build, the base id is returned
// as-is. On a second emission with the same base id but a different
// content hash, an 8-hex-character content-hash suffix is appended to
// disambiguate.
func (g *IDGenerator) Generate(kind Kind, fqn, contentHash string) string {
	base := fmt.Sprintf("chunk:%s:%s:%s", g.repoID, kind, normalizeFQN(fqn))

	prevHash, exists := g.seen[base]
	if !exists {
		g.seen[base] = contentHash
		return base
	}
	if prevHash == contentHash {
		// Identical re-emission (e.g. re-walking the same symbol); reuse
		// the base id, no disambiguation needed.
		return base
	}
	return base + ":" + hashPrefix8(contentHash)
}

func hashPrefix8(contentHash string) string {
	if len(contentHash) >= 8 {
		return contentHash[:8]
	}
	return contentHash
}

// ContentHash computes the SHA-256 hash of raw text, used for chunk-id
// disambiguation, summary cache keys, incremental-refresh unchanged
// detection, and rename detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16]) // truncated to 16 bytes hex
}
