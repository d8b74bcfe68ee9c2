// Package uid generates prefixed, time-ordered identifiers.
//
// An id looks like "cli_01hq3ks9x2h7f2m9p4r8t1vw": a type prefix, an
// underscore, 10 characters encoding the millisecond timestamp, and 6 to 16
// characters of cryptographic randomness. Ids generated later sort after ids
// generated earlier, which keeps primary-key indexes append-friendly.
package uid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Crockford base32, lowercased.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const (
	timestampLen     = 10
	minRandomLen     = 6
	maxRandomLen     = 16
	defaultRandomLen = 16
)

var timeNow = time.Now

// New returns an id with the given prefix and the default 16 random characters.
func New(prefix string) string {
	id, err := NewWithRandomLength(prefix, defaultRandomLen)
	if err != nil {
		// Unreachable: the default length is always in range.
		panic(err)
	}
	return id
}

// NewWithRandomLength returns an id whose random suffix is randomLen
// characters. randomLen must be between 6 and 16.
func NewWithRandomLength(prefix string, randomLen int) (string, error) {
	if randomLen < minRandomLen {
		return "", fmt.Errorf("uid: random length must be at least %d, got %d", minRandomLen, randomLen)
	}
	if randomLen > maxRandomLen {
		return "", fmt.Errorf("uid: random length must be at most %d, got %d", maxRandomLen, randomLen)
	}

	buf := make([]byte, timestampLen+randomLen)
	encodeTimestamp(buf[:timestampLen], timeNow().UnixMilli())
	if err := encodeRandom(buf[timestampLen:]); err != nil {
		return "", err
	}

	return prefix + "_" + string(buf), nil
}

// encodeTimestamp writes ms as 10 base32 characters, most significant first.
// 10 characters hold 50 bits, enough for a 48-bit millisecond timestamp.
func encodeTimestamp(dst []byte, ms int64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = alphabet[ms&0x1f]
		ms >>= 5
	}
}

func encodeRandom(dst []byte) error {
	raw := make([]byte, len(dst))
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("uid: read random: %w", err)
	}
	// 32 divides 256, so masking to 5 bits keeps the distribution uniform.
	for i, b := range raw {
		dst[i] = alphabet[b&0x1f]
	}
	return nil
}
