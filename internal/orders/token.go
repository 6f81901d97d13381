package orders

import "crypto/rand"

// refAlphabet avoids 0/O/1/I so refs survive being read over the phone.
const refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const refLen = 12

// NewRef mints an external order reference: 12 chars over a 32-symbol
// alphabet, 60 random bits. Collisions are negligible at that size; the
// UNIQUE index on order_ref is the backstop.
func NewRef() string {
	b := make([]byte, refLen)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failure is not recoverable here
	}
	for i := range b {
		b[i] = refAlphabet[int(b[i])%len(refAlphabet)]
	}
	return string(b)
}
