// Package otp issues the short email verification codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	// Length is the number of characters in a code.
	Length = 5
	// TTL is how long a code stays valid after issue.
	TTL = 10 * time.Minute

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Code is a verification code paired with its expiry.
type Code struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the code is no longer valid at now.
func (c Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Issuer generates codes. The zero value is not usable; call NewIssuer.
type Issuer struct {
	length int
	ttl    time.Duration
}

func NewIssuer() *Issuer {
	return &Issuer{length: Length, ttl: TTL}
}

// Issue returns a fresh code drawn uniformly from letters and digits,
// valid until now+TTL.
func (i *Issuer) Issue(now time.Time) (Code, error) {
	buf := make([]byte, i.length)
	max := big.NewInt(int64(len(alphabet)))
	for n := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return Code{}, fmt.Errorf("generate otp: %w", err)
		}
		buf[n] = alphabet[idx.Int64()]
	}
	return Code{Value: string(buf), ExpiresAt: now.Add(i.ttl)}, nil
}
