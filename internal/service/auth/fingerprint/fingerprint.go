// Package fingerprint derives deterministic lookup keys for tokens.
//
// Raw tokens are never stored. The store keeps HMAC-SHA256 of a token keyed with a server secret,
// so the same token always maps to the same record while the stored value is useless without the key.
package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

type Fingerprinter struct {
	key []byte
}

func New(key string) (*Fingerprinter, error) {
	if key == "" {
		return nil, errors.New("fingerprint: key must not be empty")
	}
	return &Fingerprinter{key: []byte(key)}, nil
}

// DeriveKey returns key for fingerprints derived from another secret
// Used when dedicated key is not configured
func DeriveKey(secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("token-fingerprint")) // nolint:errcheck
	return hex.EncodeToString(mac.Sum(nil))
}

// Sum returns hex encoded fingerprint of the token
func (f *Fingerprinter) Sum(token string) string {
	mac := hmac.New(sha256.New, f.key)
	mac.Write([]byte(token)) // nolint:errcheck
	return hex.EncodeToString(mac.Sum(nil))
}
