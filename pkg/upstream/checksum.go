package upstream

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// checksumPattern matches the provider's device checksum: an 8-char
// obfuscated timestamp prefix, a 64-hex device digest, a slash, and a
// 64-hex machine digest.
var checksumPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8}[0-9a-f]{64}/[0-9a-f]{64}$`)

// GenerateChecksum builds a fresh device checksum from two random
// digests, as done once at credential registration. The upstream only
// requires the value to be stable per credential, not meaningful.
func GenerateChecksum() string {
	return checksumPrefix(time.Now()) + generateHash() + "/" + generateHash()
}

// ValidChecksum reports whether s has the provider's checksum shape.
func ValidChecksum(s string) bool {
	return checksumPattern.MatchString(s)
}

// generateHash returns the hex digest of 32 random bytes.
func generateHash() string {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("upstream: read random: %v", err))
	}
	sum := sha256.Sum256(seed[:])
	return hex.EncodeToString(sum[:])
}

// checksumPrefix obfuscates the timestamp into the 8-char prefix the
// provider expects: the Unix minute packed into six bytes through a
// rolling XOR, then base64url-encoded.
func checksumPrefix(t time.Time) string {
	ts := uint64(t.Unix() / 60)
	raw := [6]byte{
		byte(ts >> 40),
		byte(ts >> 32),
		byte(ts >> 24),
		byte(ts >> 16),
		byte(ts >> 8),
		byte(ts),
	}
	prev := byte(165)
	for i := range raw {
		raw[i] = (raw[i] ^ prev) + byte(i)
		prev = raw[i]
	}
	return base64.RawURLEncoding.EncodeToString(raw[:])
}
