package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows the encoding
// to change without colliding with old fingerprints.
const (
	DomainParams  = "dop/params/v1"
	DomainOutputs = "dop/outputs/v1"
	DomainOps     = "dop/ops/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes a named set of values (params or outputs).
// Names are sorted canonically, so insertion order does not matter.
func Fingerprint(domain string, named map[string]Value) (string, error) {
	d := NewDict()
	for k, v := range named {
		d.Set(k, v)
	}
	canonical, err := MarshalCanonical(NewObject(d))
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return HashWithDomain(domain, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when values are known to be encodable.
func MustFingerprint(domain string, named map[string]Value) string {
	fp, err := Fingerprint(domain, named)
	if err != nil {
		panic(err)
	}
	return fp
}
