package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the payload signature of an inbound delivery.
// https://developers.facebook.com/docs/messenger-platform/webhooks#validate-payloads
const SignatureHeader = "X-Hub-Signature-256"

// Signature returns "sha256=" + hex(HMAC-SHA256(secret, body)).
func Signature(secret, body []byte) string {

	algo := sha256.New
	hash := hmac.New(algo, secret)
	_, _ = hash.Write(body)

	return "sha256=" + hex.EncodeToString(hash.Sum(nil))
}

// VerifySignature checks the X-Hub-Signature-256 header value against the
// raw, unparsed body bytes. Parsing and re-serializing would change the
// byte sequence and void the check, so callers must hand over the exact
// bytes received.
func VerifySignature(body []byte, header string, secret []byte) bool {

	hsum := header
	// Detect signature algorithm ...
	if eq := strings.IndexByte(hsum, '='); 0 < eq && eq < len(hsum) {
		switch algo := strings.ToLower(hsum[0:eq]); algo {
		case "sha256": // Expected !
		default:
			return false
		}
		hsum = hsum[eq+1:]
	}

	if hex.DecodedLen(len(hsum)) != sha256.Size {
		return false
	}
	sum, err := hex.DecodeString(hsum)
	if err != nil {
		return false
	}

	algo := sha256.New
	hash := hmac.New(algo, secret)
	_, _ = hash.Write(body)

	return hmac.Equal(hash.Sum(nil), sum)
}
