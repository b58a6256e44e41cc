package robinhood

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

// Signer produces the authentication headers for one request. The message is
// the UTF-8 concatenation api_key + timestamp + path + method + body, signed
// with Ed25519 and base64-encoded. The path includes the query string.
type Signer struct {
	apiKey string
	key    ed25519.PrivateKey
	now    func() time.Time
}

func NewSigner(apiKey string, key ed25519.PrivateKey) (*Signer, error) {
	if apiKey == "" {
		return nil, errors.New("api key required")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key")
	}
	return &Signer{apiKey: apiKey, key: key, now: time.Now}, nil
}

// Headers returns x-api-key, x-signature and x-timestamp for the request.
func (s *Signer) Headers(method, path, body string) map[string]string {
	ts := strconv.FormatInt(s.now().UTC().Unix(), 10)
	msg := s.apiKey + ts + path + method + body
	sig := ed25519.Sign(s.key, []byte(msg))
	return map[string]string{
		"x-api-key":   s.apiKey,
		"x-signature": base64.StdEncoding.EncodeToString(sig),
		"x-timestamp": ts,
	}
}
