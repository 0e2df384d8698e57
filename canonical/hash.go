package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing. The version suffix enables future
// algorithm migration without ambiguity between old and new digests.
const (
	DomainState = "ledgerflow/state/v1"
	DomainEvent = "ledgerflow/event/v1"
)

// Sum computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + payload). The null byte prevents
// domain/payload boundary ambiguity.
func Sum(domain string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// EmptyHash is the sentinel digest for absent state. All nil values collapse
// to this single digest.
var EmptyHash = Sum(DomainState, []byte("null"))

// Hash digests v under the state domain. It never fails: values that cannot
// be canonically encoded hash a stable per-type placeholder instead.
func Hash(v any) string {
	return HashIn(DomainState, v)
}

// HashIn digests v under the given domain with the same fallback behavior
// as Hash.
func HashIn(domain string, v any) string {
	if v == nil {
		return EmptyHash
	}
	data, err := Marshal(v)
	if err != nil {
		return Sum(domain, fmt.Appendf(nil, "unhashable:%T", v))
	}
	return Sum(domain, data)
}
