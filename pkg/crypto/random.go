package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// RandomHex returns n random bytes from crypto/rand encoded as hex.
func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random hex: invalid length %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random hex: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NumericCode returns a uniformly distributed decimal code of the given
// number of digits. Leading zeros are kept.
func NumericCode(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("numeric code: invalid length %d", digits)
	}
	code := make([]byte, digits)
	ten := big.NewInt(10)
	for i := range code {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("numeric code: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}

// EqualSecrets compares two secrets in constant time.
func EqualSecrets(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
