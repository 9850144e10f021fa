package rag

import (
	"crypto/sha256"
	"encoding/hex"
)

// FileKey derives the identity key for a document from its filename.
// Two uploads with the same filename share a key and therefore replace
// each other; the key is stored opaquely in chunk metadata and never
// decoded back.
func FileKey(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:])
}
