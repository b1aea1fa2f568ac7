package utils // package utils provides helpers for token and code generation

import (
	"crypto/rand" // secure random number generation
	"encoding/hex"
	"math/big"
)

// RandomToken generates a random hexadecimal string of n bytes (2n
// characters). The underlying call to crypto/rand ensures
// cryptographically secure random bytes; generation only fails if the
// system entropy source is broken, in which case we panic rather than
// hand out predictable tokens.
func RandomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("utils: entropy source unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// orderCodeAlphabet avoids characters that are easy to confuse when
// read aloud or written down (0/O, 1/I/L).
const orderCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// OrderCode generates a short public order identifier, e.g. "F8K3Q".
// Uniqueness is enforced by the orders.code unique key; on the rare
// collision the insert fails and the operation aborts cleanly.
func OrderCode() string {
	out := make([]byte, 6)
	max := big.NewInt(int64(len(orderCodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("utils: entropy source unavailable: " + err.Error())
		}
		out[i] = orderCodeAlphabet[n.Int64()]
	}
	return string(out)
}
