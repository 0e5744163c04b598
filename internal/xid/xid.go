package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// InvoiceNumber generates a locally-unique invoice number placeholder. No
// global uniqueness is guaranteed; the persistence layer owns that concern.
func InvoiceNumber() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("INV-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("INV-%s-%s", time.Now().UTC().Format("20060102"), hex.EncodeToString(buf))
}
