package futures

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// HashState produces a stable digest of a serializable state snapshot.
// encoding/json writes struct fields in declaration order and sorts map
// keys, so the same snapshot always hashes to the same digest. This is
// the only hashing primitive in the change log; the before/after chain
// is built entirely from it.
func HashState(state any) (string, error) {
	canonical, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state for hashing: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// NewChangeID derives the identity of a change record from its
// content, mirroring how idea IDs are derived.
func NewChangeID(ideaID string, ts time.Time, changeType ChangeType) string {
	content := fmt.Sprintf("%s:%s:%s", ideaID, ts.UTC().Format(time.RFC3339Nano), changeType)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}
