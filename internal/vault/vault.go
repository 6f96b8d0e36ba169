// Package vault provides envelope encryption for tenant secrets: AI provider
// API keys and per-channel/tool credentials. Ciphertext is stored inline in
// Postgres columns (api_key_enc, config_enc, tool settings within
// extra_json) rather than in a separate secrets backend, since the platform
// has no external KMS dependency in this deployment shape.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const versionPrefix = "v1:"

// Vault holds the platform master key used to derive per-subject envelope
// keys. It never persists plaintext secrets or derived keys.
type Vault struct {
	masterKey []byte
}

func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("vault: master key must be 32 bytes, got %d", len(masterKey))
	}
	return &Vault{masterKey: masterKey}, nil
}

// LoadOrGenerateKey reads a 32-byte master key from path, generating and
// persisting a fresh random key on first run. The key file is created with
// owner-only permissions.
func LoadOrGenerateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decodeErr != nil {
			return nil, fmt.Errorf("vault: decoding key file %s: %w", path, decodeErr)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("vault: key file %s does not contain a 32-byte key", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("vault: reading key file %s: %w", path, err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("vault: generating master key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("vault: creating key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("vault: writing key file %s: %w", path, err)
	}
	return key, nil
}

func deriveKey(masterKey, subject []byte, info string) []byte {
	mac := hmac.New(sha256.New, masterKey)
	_, _ = mac.Write([]byte(info))
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write(subject)
	return mac.Sum(nil)
}

func aad(subject []byte, info string) []byte {
	out := make([]byte, 0, len(info)+1+len(subject))
	out = append(out, info...)
	out = append(out, 0)
	out = append(out, subject...)
	return out
}

// Encrypt seals plaintext under a key derived from the vault's master key,
// subject, and info (the field being protected, e.g. "tenant_config.api_key").
// An empty plaintext encrypts to an empty string, so absent secrets never
// produce ciphertext noise.
func (v *Vault) Encrypt(subject []byte, info string, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	key := deriveKey(v.masterKey, subject, info)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("vault: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: reading nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), aad(subject, info))
	buf := append(nonce, sealed...)
	return versionPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt. An empty ciphertext decrypts to an empty string.
func (v *Vault) Decrypt(subject []byte, info string, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	encoded := strings.TrimPrefix(strings.TrimSpace(ciphertext), versionPrefix)
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("vault: decoding ciphertext: %w", err)
	}

	key := deriveKey(v.masterKey, subject, info)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("vault: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: new gcm: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("vault: ciphertext too short")
	}

	nonce, body := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, aad(subject, info))
	if err != nil {
		return "", fmt.Errorf("vault: decrypt: %w", err)
	}
	return string(plaintext), nil
}

// EncryptTenantAPIKey scopes the envelope to the owning tenant, so ciphertext
// from one tenant's config can never be decrypted under another's id even if
// copied between rows.
func (v *Vault) EncryptTenantAPIKey(tenantID uuid.UUID, plaintext string) (string, error) {
	return v.Encrypt(tenantID[:], "tenant_config.api_key", plaintext)
}

func (v *Vault) DecryptTenantAPIKey(tenantID uuid.UUID, ciphertext string) (string, error) {
	return v.Decrypt(tenantID[:], "tenant_config.api_key", ciphertext)
}

// MaskAPIKey takes an already-decrypted key and returns a display-safe
// "****last4" form. Keys of 4 characters or fewer mask entirely. An empty
// key masks to "".
func MaskAPIKey(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	if len(plaintext) <= 4 {
		return "****"
	}
	return "****" + plaintext[len(plaintext)-4:]
}

// IsEncrypted reports whether s looks like vault ciphertext, as opposed to a
// plaintext value that hasn't been through the vault yet.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, versionPrefix)
}
