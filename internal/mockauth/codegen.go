package mockauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// userCodeCharset excludes vowels and similar-looking characters per
// RFC 8628 section 6.1.
const userCodeCharset = "BCDFGHJKLMNPQRSTVWXZ"

// userCodeGroupSize is the characters per group in the XXXX-XXXX format.
const userCodeGroupSize = 4

// generateDeviceCode returns a 64 hex character opaque device code.
func generateDeviceCode() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// generateUserCode returns a short user-facing code in XXXX-XXXX format.
func generateUserCode() (string, error) {
	var b strings.Builder
	for group := 0; group < 2; group++ {
		if group > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < userCodeGroupSize; i++ {
			c, err := randomChar(userCodeCharset)
			if err != nil {
				return "", err
			}
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// randomChar selects one character from charset without modulo bias.
func randomChar(charset string) (byte, error) {
	maxUsable := 256 - (256 % len(charset))
	for {
		raw := make([]byte, 1)
		if _, err := rand.Read(raw); err != nil {
			return 0, fmt.Errorf("generating random byte: %w", err)
		}
		if int(raw[0]) >= maxUsable {
			continue
		}
		return charset[int(raw[0])%len(charset)], nil
	}
}

// normalizeUserCode converts a user code to its canonical lookup form.
func normalizeUserCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}

// newOpaqueToken mints a deterministic-looking but unique token value.
func newOpaqueToken(prefix string, seq int) string {
	raw := make([]byte, 12)
	_, _ = rand.Read(raw)
	return fmt.Sprintf("%s-%d-%s", prefix, seq, hex.EncodeToString(raw))
}
