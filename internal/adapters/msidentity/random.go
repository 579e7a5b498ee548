package msidentity

import (
	"crypto/rand"
	"encoding/base64"
)

// stateNonceBytes is the entropy carried by every state value.
const stateNonceBytes = 32

// randomString returns n random bytes encoded as unpadded base64url.
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
