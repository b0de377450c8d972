package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const pnrAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePNR returns a random fixed-length uppercase alphanumeric
// booking reference. Uniqueness is enforced by the allocator's
// collision check before commit, not here.
func GeneratePNR(length int) string {
	if length <= 0 {
		length = 8
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pnrAlphabet))))
		if err != nil {
			// crypto/rand failing is unrecoverable enough that a
			// timestamp-derived fallback is acceptable for one char
			buf[i] = pnrAlphabet[time.Now().UnixNano()%int64(len(pnrAlphabet))]
			continue
		}
		buf[i] = pnrAlphabet[n.Int64()]
	}
	return string(buf)
}

// GenerateEventID creates an identifier for outbound broker events.
func GenerateEventID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("evt_%d_%09d", timestamp, randomNum.Int64())
}
