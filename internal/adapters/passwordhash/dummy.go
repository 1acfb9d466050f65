package passwordhash

import (
	"context"
	"crypto/rand"
	"sync"
)

// DummyHash returns a well-formed hash that no password matches, computed once
// with the hasher's own parameters. Verifying against it when an identifier is
// unknown keeps the login path's cost independent of account existence.
func (h *Hasher) DummyHash() string {
	h.dummyOnce.Do(func() {
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)
		salt := make([]byte, saltLen)
		_, _ = rand.Read(salt)
		key, err := h.derive(context.Background(), secret, salt, h.params)
		if err != nil {
			return
		}
		h.dummy = encode(h.params, salt, key)
	})
	return h.dummy
}

type dummyState struct {
	dummyOnce sync.Once
	dummy     string
}
