package marks

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenGenerator abstracts public-link token generation so tests are
// deterministic. Tokens must be unguessable and unique.
type TokenGenerator interface {
	New() (string, error)
}

// RandomTokenGenerator draws 128 bits from crypto/rand per token.
type RandomTokenGenerator struct{}

func (RandomTokenGenerator) New() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
