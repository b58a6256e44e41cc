package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envAPIKey     = "RH_API_KEY"
	envPrivateKey = "RH_BASE64_PRIVATE_KEY"
)

// Credentials carries the two required secrets, parsed once at startup and
// passed into constructors. Business logic never reads the process
// environment.
type Credentials struct {
	APIKey     string
	PrivateKey ed25519.PrivateKey
}

// LoadCredentials reads the API key and the base64-encoded 32-byte Ed25519
// seed from the environment, loading a .env file first when present. A
// malformed key is fatal: no signer can be constructed from it.
func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load()
	apiKey := strings.TrimSpace(os.Getenv(envAPIKey))
	if apiKey == "" {
		return Credentials{}, fmt.Errorf("%s is required", envAPIKey)
	}
	encoded := strings.TrimSpace(os.Getenv(envPrivateKey))
	if encoded == "" {
		return Credentials{}, fmt.Errorf("%s is required", envPrivateKey)
	}
	key, err := ParsePrivateKey(encoded)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s: %w", envPrivateKey, err)
	}
	return Credentials{APIKey: apiKey, PrivateKey: key}, nil
}

// ParsePrivateKey decodes a base64 Ed25519 seed into a signing key.
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key seed must be %d bytes, got %d", ed25519.SeedSize, len(raw))
	}
	return ed25519.NewKeyFromSeed(raw), nil
}
