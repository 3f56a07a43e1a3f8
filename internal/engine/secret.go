package engine

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// newSecret is swapped out in tests that need a predictable secret.
var newSecret = func() (string, error) {
	key, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

// HashSecret folds a player's secret into the value stored on the player.
// The secret acts as a per-player PIN, not as an authentication boundary.
func HashSecret(secret string) (int64, error) {
	key, err := uuid.Parse(secret)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed secret", ErrAccessDenied)
	}
	sum := blake2b.Sum256(key[:])
	return int64(binary.BigEndian.Uint64(sum[:8])), nil
}

// VerifySecret compares the secret against a stored hash in constant time.
func VerifySecret(secret string, hash int64) bool {
	got, err := HashSecret(secret)
	if err != nil {
		return false
	}
	var a, b [8]byte
	binary.BigEndian.PutUint64(a[:], uint64(got))
	binary.BigEndian.PutUint64(b[:], uint64(hash))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
