package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Tee returns a reader that hashes everything read through r, and a func
// yielding the hex digest of the bytes consumed so far.
func Tee(r io.Reader) (io.Reader, func() string) {
	h := sha256.New()
	return io.TeeReader(r, h), func() string {
		return hex.EncodeToString(h.Sum(nil))
	}
}
