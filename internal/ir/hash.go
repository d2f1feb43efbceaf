package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainGraph          = "vecverify/graph/v1"
	DomainDataset        = "vecverify/dataset/v1"
	DomainCompilation    = "vecverify/compilation/v1"
	DomainDeoptimization = "vecverify/deoptimization/v1"
)

// HashWithDomain computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
