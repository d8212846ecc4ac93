// Package crypto provides cryptographic utility functions.
package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

const identifierSample = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Bytes returns securely generated random bytes.
func Bytes(length int) ([]byte, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// String returns a securely generated random string drawn from an
// alphanumeric sample.
func String(length int) (string, error) {
	b, err := Bytes(length)
	if err != nil {
		return "", err
	}

	for i, c := range b {
		b[i] = identifierSample[c%byte(len(identifierSample))]
	}

	return string(b), nil
}

// Hash returns a sha512 hash of a string.
func Hash(s string) string {
	h := sha512.New()
	// hash.Hash writes never fail.
	_, _ = h.Write([]byte(s))

	return hex.EncodeToString(h.Sum(nil))
}

// Identifier derives a stable identifier from a natural key. The salt
// keeps the identifier from being reversible by enumeration and the
// prefix scopes it to a session type.
func Identifier(prefix, naturalKey, salt string) string {
	h := Hash(strings.Join([]string{salt, naturalKey}, ":"))

	if prefix == "" {
		return h
	}

	return prefix + "." + h
}
