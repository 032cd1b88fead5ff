package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a rendered fingerprint in characters.
const Size = sha256.Size * 2

// Sum computes the content fingerprint of a document: the SHA-256 digest of
// the raw bytes, rendered as lowercase hex. Identical bytes always map to
// the same fingerprint; nothing else (source timestamp included) is part of
// the identity.
func Sum(document []byte) string {
	digest := sha256.Sum256(document)
	return hex.EncodeToString(digest[:])
}
