// Package receipt implements the receipt-note encoding and provenance
// protocol: canonical serialization and content digest of a full receipt,
// plus derivation of the bounded-size on-chain note that points back to it.
package receipt

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/radlabs/rampd/internal/domain"
)

// DigestSize is the length of the content digest in bytes.
const DigestSize = sha256.Size

// PrefixSize is how many digest bytes are embedded in the on-chain note.
// The full digest is always retained off-chain; only the embedded copy is
// shortened.
const PrefixSize = 16

// Canonical serializes the receipt deterministically: fixed field order (the
// struct declaration order), compact JSON, UTF-8, no insignificant
// whitespace. Two calls on equal content produce byte-identical output, which
// is what makes the digest a stable identity.
func Canonical(r *domain.Receipt) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("canonicalize receipt: %w", err)
	}
	return b, nil
}

// DigestOf fingerprints canonical bytes. Pure integrity/identity hash, no
// secret key involved.
func DigestOf(canonical []byte) [DigestSize]byte {
	return sha256.Sum256(canonical)
}

// Digest canonicalizes and hashes in one step.
func Digest(r *domain.Receipt) ([DigestSize]byte, error) {
	b, err := Canonical(r)
	if err != nil {
		return [DigestSize]byte{}, err
	}
	return DigestOf(b), nil
}
