package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenKey = "api.token"

// EnsureAPIToken returns the local API bearer token, generating and storing
// a fresh one on first use. The token only guards the loopback API, so the
// config file (mode 0600) is an acceptable home for it.
func EnsureAPIToken() (string, error) {
	return ensureAPIToken(newFileBackend(configFilePath()))
}

func ensureAPIToken(b Backend) (string, error) {
	if v, ok, err := b.GetString(tokenKey); err == nil && ok && v != "" {
		return v, nil
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := b.SetString(tokenKey, token); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return token, nil
}
