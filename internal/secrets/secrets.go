// Package secrets encrypts credentials at rest with a fernet key stored in
// a local key file. The key is generated on first use, so a fresh
// deployment needs no manual key management.
package secrets

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

// Box encrypts and decrypts short secret strings with a single fernet key.
type Box struct {
	key *fernet.Key
}

// Open loads the fernet key from keyPath, generating and persisting a new
// one if the file does not exist.
func Open(keyPath string) (*Box, error) {
	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		var k fernet.Key
		if err := k.Generate(); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		if err := os.WriteFile(keyPath, []byte(k.Encode()), 0o600); err != nil {
			return nil, fmt.Errorf("write key file %s: %w", keyPath, err)
		}
		return &Box{key: &k}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", keyPath, err)
	}

	key, err := fernet.DecodeKey(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode key file %s: %w", keyPath, err)
	}
	return &Box{key: key}, nil
}

// Encrypt returns the fernet token for plaintext.
func (b *Box) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), b.key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a fernet token. Tokens never expire (the
// key file, not token age, controls validity).
func (b *Box) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), 0*time.Second, []*fernet.Key{b.key})
	if msg == nil {
		return "", fmt.Errorf("decrypt: invalid token")
	}
	return string(msg), nil
}

// Mask hides a secret for display, keeping the last four characters of
// longer values as a recognizable hint.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 4 {
		return "****" + value[len(value)-4:]
	}
	return "****"
}
