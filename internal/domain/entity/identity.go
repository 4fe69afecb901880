package entity

import (
	"crypto/rand"
	"fmt"
)

const (
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength   = 8
)

// Identity is the generated address/secret pair used for one signup attempt.
// It is created once per session and never changes afterwards.
type Identity struct {
	Address string
	Secret  string
}

// NewIdentity mints a unique address of the form prefix-suffix@domain.
// The random suffix keeps concurrent sessions from colliding on the
// same inbox address.
func NewIdentity(prefix, domain, secret string) Identity {
	return Identity{
		Address: fmt.Sprintf("%s-%s@%s", prefix, randomSuffix(suffixLength), domain),
		Secret:  secret,
	}
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}
