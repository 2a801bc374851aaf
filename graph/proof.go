package graph

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	ParamAccessToken = "access_token"
	ParamSecretProof = "appsecret_proof"
	ParamSecretTime  = "appsecret_time"
)

// DefaultProofSkew shifts the proof timestamp into the past to tolerate
// clock drift between us and the Graph API edge.
const DefaultProofSkew = 5 * time.Second

// SecretProof returns hex(HMAC-SHA256(clientSecret, accessToken)).
// This is the time-less appsecret_proof variant.
// https://developers.facebook.com/docs/graph-api/security/#appsecret_proof
func SecretProof(accessToken, clientSecret string) string {

	algo := sha256.New
	hash := hmac.New(algo, []byte(clientSecret))
	_, _ = hash.Write([]byte(accessToken))
	hsum := hash.Sum(nil)

	return hex.EncodeToString(hsum)
}

// SecretProofAt returns the time-bound appsecret_proof tag together with
// the unix timestamp it was computed for.
//
//	timestamp = floor(now) - skew
//	proof     = hex(HMAC-SHA256(clientSecret, accessToken + "|" + timestamp))
//
// Deterministic for identical inputs; the clock is an argument on purpose.
func SecretProofAt(accessToken, clientSecret string, now time.Time, skew time.Duration) (proof string, timestamp int64) {

	timestamp = now.Unix() - int64(skew/time.Second)

	algo := sha256.New
	hash := hmac.New(algo, []byte(clientSecret))
	_, _ = hash.Write([]byte(accessToken))
	_, _ = hash.Write([]byte{'|'})
	_, _ = hash.Write([]byte(strconv.FormatInt(timestamp, 10)))
	hsum := hash.Sum(nil)

	return hex.EncodeToString(hsum), timestamp
}
