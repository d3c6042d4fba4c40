package common

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString generates a random hexadecimal string from size random
// bytes read from crypto/rand. The resulting string length is twice the size
// (each byte expands to two hex characters). It is used for download tokens,
// so size must be large enough that brute force within a token's validity
// window is infeasible.
func MakeRandHexString(size int) (string, error) {

	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
