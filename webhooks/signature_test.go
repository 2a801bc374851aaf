package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {

	secret := []byte("e9f9cbd2f09e5a09cca2f40824902e31")
	body := []byte(`{"object":"page","entry":[{"id":"100","messaging":[{"sender":{"id":"999"},"message":{"text":"Yo"}}]}]}`)

	header := Signature(secret, body)
	assert.True(t, VerifySignature(body, header, secret))

	// Any single-byte mutation of the body must void the check.
	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.False(t, VerifySignature(mutated, header, secret),
			"mutation at offset %d must not verify", i)
	}
}

func TestVerifySignatureRejects(t *testing.T) {

	secret := []byte("app-secret")
	body := []byte(`{"object":"page"}`)
	valid := Signature(secret, body)

	tests := []struct {
		name   string
		header string
		secret []byte
	}{
		{name: "wrong secret", header: valid, secret: []byte("other-secret")},
		{name: "empty header", header: "", secret: secret},
		{name: "unsupported algorithm", header: "sha1=" + valid[len("sha256="):], secret: secret},
		{name: "truncated digest", header: "sha256=abcdef", secret: secret},
		{name: "not hex", header: "sha256=" + string(make([]byte, 64)), secret: secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifySignature(body, tt.header, tt.secret))
		})
	}
}
