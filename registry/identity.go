package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/goombaio/namegenerator"
)

// generateName produces a human-readable two-word-plus-number name. A
// single package-level generator is reused across calls (the underlying
// rand source isn't safe to recreate per call with a high-resolution seed
// in a tight loop — collisions become likelier, not rarer) and guarded by
// its own mutex since namegenerator.Generator isn't documented as
// goroutine-safe.
var (
	nameGenMu sync.Mutex
	nameGen   = namegenerator.NewNameGenerator(time.Now().UTC().UnixNano())
)

func generateName() string {
	nameGenMu.Lock()
	defer nameGenMu.Unlock()
	return nameGen.Generate()
}

// idFromName derives a container id as the lowercase hex SHA-256 digest of
// the name's UTF-8 bytes, per spec.md invariant 3.
func idFromName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

// GenerateID produces a fresh (id, name) pair. Collisions are vanishingly
// improbable and surfaced to the caller as an ordinary Duplicate from Add,
// not specially handled here.
func GenerateID() (id, name string) {
	name = generateName()
	return idFromName(name), name
}
