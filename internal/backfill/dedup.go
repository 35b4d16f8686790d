package backfill

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint identifies a conversation by its content, so the same
// transcript exported twice under different session ids is learned once.
func Fingerprint(c Conversation) string {
	h := sha256.New()
	for _, m := range c.Messages {
		h.Write([]byte(strings.ToLower(m.Role)))
		h.Write([]byte{0})
		h.Write([]byte(strings.TrimSpace(m.Content)))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
