// Package entity defines the core data model for the Spuro entity store:
// the Entity record, the typed attribute Value, lifecycle events, and the
// ownership authorization rule.
package entity

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/spuro/spuro/errors"
)

// Key is an opaque, globally unique, immutable entity identifier assigned
// at creation. Wire form is "0x" followed by 64 hex characters.
type Key string

// Owner is an opaque principal identifier with exclusive mutation rights
// over an entity.
type Owner string

// KeyLength is the number of random bytes in an entity key.
const KeyLength = 32

// MintKey generates a fresh random entity key.
func MintKey() (Key, error) {
	buf := make([]byte, KeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to mint entity key")
	}
	return Key("0x" + hex.EncodeToString(buf)), nil
}

// ValidKey reports whether k has the canonical key shape.
func ValidKey(k Key) bool {
	s := string(k)
	if len(s) != 2+2*KeyLength || s[0] != '0' || s[1] != 'x' {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// Entity is the store's fundamental record.
type Entity struct {
	Key         Key              `json:"key"`
	Owner       Owner            `json:"owner"`
	Payload     []byte           `json:"payload,omitempty"`
	ContentType string           `json:"content_type"`
	Attributes  map[string]Value `json:"attributes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// Expired reports whether the entity is past its TTL as of now.
// An entity is visible iff now < ExpiresAt.
func (e *Entity) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Attr returns the named attribute value and whether it is present.
func (e *Entity) Attr(name string) (Value, bool) {
	v, ok := e.Attributes[name]
	return v, ok
}

// ComputeExpiry converts a caller-supplied relative TTL into an absolute
// expiry instant. The TTL must be strictly positive; an expiry that would
// land in the past is rejected at the operation boundary, never stored.
func ComputeExpiry(now time.Time, ttl time.Duration) (time.Time, error) {
	if ttl <= 0 {
		return time.Time{}, errors.NewInvalidInputf("ttl must be positive, got %s", ttl)
	}
	return now.Add(ttl), nil
}
