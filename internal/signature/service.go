// Package signature signs and verifies integrity verdicts with a keyed MAC
// over a canonical JSON serialization.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	dErrors "checkpoint/pkg/domain-errors"
)

// Algorithm identifies the keyed hash used for signing. It is part of the
// service configuration, never inferred from the payload or signature.
type Algorithm string

const (
	AlgorithmHMACSHA256 Algorithm = "hmac-sha256"
	AlgorithmHMACSHA512 Algorithm = "hmac-sha512"
	AlgorithmBlake2b256 Algorithm = "blake2b-256"
)

// Service produces and checks deterministic signatures over arbitrary
// JSON-serializable payloads.
type Service struct {
	key []byte
	alg Algorithm
}

// New constructs a signature service. The key must be non-empty; an unknown
// algorithm is a configuration error surfaced at wiring time.
func New(secret string, algorithm Algorithm) (*Service, error) {
	if secret == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "signature secret is required")
	}
	switch algorithm {
	case AlgorithmHMACSHA256, AlgorithmHMACSHA512, AlgorithmBlake2b256:
	default:
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "unknown signature algorithm: %s", algorithm)
	}
	return &Service{key: []byte(secret), alg: algorithm}, nil
}

// Sign serializes the payload canonically and returns a base64 signature.
func (s *Service) Sign(payload any) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	mac, err := s.mac()
	if err != nil {
		return "", err
	}
	mac.Write(canonical)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature for the payload and compares it in
// constant time. Malformed signatures verify false, never error.
func (s *Service) Verify(payload any, signature string) bool {
	expected, err := s.Sign(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (s *Service) mac() (hash.Hash, error) {
	switch s.alg {
	case AlgorithmHMACSHA256:
		return hmac.New(sha256.New, s.key), nil
	case AlgorithmHMACSHA512:
		return hmac.New(sha512.New, s.key), nil
	case AlgorithmBlake2b256:
		// blake2b is keyed natively; no HMAC wrapper needed.
		return blake2b.New256(s.key)
	}
	return nil, dErrors.Newf(dErrors.CodeConfiguration, "unknown signature algorithm: %s", s.alg)
}

// canonicalize produces a deterministic byte serialization. encoding/json
// sorts map keys, so round-tripping through a generic value normalizes
// struct field order and whitespace.
func canonicalize(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
