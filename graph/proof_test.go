package graph

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecretProofAt(t *testing.T) {

	now := time.Unix(1700000000, 500000000) // fractional seconds must floor away

	proof, timestamp := SecretProofAt("EAAtoken", "app-secret", now, DefaultProofSkew)

	assert.Equal(t, int64(1700000000-5), timestamp)

	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write([]byte("EAAtoken|" + strconv.FormatInt(timestamp, 10)))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), proof)

	// Deterministic for identical inputs.
	again, ts2 := SecretProofAt("EAAtoken", "app-secret", now, DefaultProofSkew)
	assert.Equal(t, proof, again)
	assert.Equal(t, timestamp, ts2)
}

func TestSecretProofAtSkew(t *testing.T) {

	tests := []struct {
		name string
		skew time.Duration
		want int64
	}{
		{name: "default", skew: 5 * time.Second, want: 95},
		{name: "none", skew: 0, want: 100},
		{name: "minute", skew: time.Minute, want: 40},
	}

	now := time.Unix(100, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, timestamp := SecretProofAt("token", "secret", now, tt.skew)
			assert.Equal(t, tt.want, timestamp)
		})
	}
}

func TestSecretProof(t *testing.T) {

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("token"))

	assert.Equal(t,
		hex.EncodeToString(mac.Sum(nil)),
		SecretProof("token", "secret"),
	)
}
