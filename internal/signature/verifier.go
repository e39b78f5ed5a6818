// Package signature verifies that webhook bodies were signed by the provider.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
)

// Header is the request header Meta uses for the body signature.
const Header = "X-Hub-Signature-256"

const prefix = "sha256="

// Verifier checks HMAC-SHA256 signatures made with a shared app secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(appSecret string) *Verifier {
	return &Verifier{secret: []byte(appSecret)}
}

// Sign returns the header value the provider would send for body.
func (v *Verifier) Sign(body []byte) string {
	return prefix + hex.EncodeToString(v.mac(body))
}

// Valid reports whether received is a correct signature of body.
// It fails closed when no secret is configured.
func (v *Verifier) Valid(body []byte, received string) bool {
	return v.Verify(body, received) == nil
}

// Verify is Valid with a reason attached.
func (v *Verifier) Verify(body []byte, received string) error {
	if v == nil || len(v.secret) == 0 {
		return appErrors.NewAuthenticationError("app secret not configured")
	}
	received = strings.TrimSpace(received)
	if received == "" {
		return appErrors.NewAuthenticationError("missing signature")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(received, prefix))
	if err != nil {
		return appErrors.NewAuthenticationError("malformed signature")
	}
	if !hmac.Equal(v.mac(body), got) {
		return appErrors.NewAuthenticationError("signature mismatch")
	}
	return nil
}

func (v *Verifier) mac(body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(body)
	return m.Sum(nil)
}
