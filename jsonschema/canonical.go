package jsonschema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	jsoncanonicalizer "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Canonical renders s in RFC 8785 canonical form, so that logically equal
// schemas produce identical bytes.
func Canonical(s Schema) ([]byte, error) {
	raw, err := Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: marshal: %w", err)
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: canonicalize: %w", err)
	}
	return out, nil
}

// Fingerprint is the hex SHA-256 of the canonical form.
func Fingerprint(s Schema) (string, error) {
	c, err := Canonical(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(c)
	return hex.EncodeToString(sum[:]), nil
}
