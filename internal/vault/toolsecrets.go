package vault

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// secretKeyMarkers names the JSON object keys within tool_settings treated
// as secrets worth encrypting at rest and masking on read — mirroring the
// original's catch-all for api keys, tokens, and webhook URLs embedded in
// per-tool configuration blobs.
var secretKeyMarkers = []string{"key", "token", "secret", "password", "webhook"}

func looksLikeSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// EncryptToolSecrets walks a tool_settings JSON document and encrypts the
// string value of every key matching a secret marker, in place. Nested
// objects are walked recursively; arrays are left untouched since tool
// settings never embed secrets inside lists.
func (v *Vault) EncryptToolSecrets(tenantID uuid.UUID, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("vault: decoding tool settings: %w", err)
	}
	if err := v.walkToolSecrets(tenantID, doc, true); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// MaskToolSecrets produces a display copy of tool_settings with every
// secret value decrypted and replaced by its masked form — never the raw
// ciphertext, never the plaintext.
func (v *Vault) MaskToolSecrets(tenantID uuid.UUID, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("vault: decoding tool settings: %w", err)
	}
	if err := v.walkToolSecrets(tenantID, doc, false); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (v *Vault) walkToolSecrets(tenantID uuid.UUID, doc map[string]any, encrypt bool) error {
	for key, val := range doc {
		switch vv := val.(type) {
		case map[string]any:
			if err := v.walkToolSecrets(tenantID, vv, encrypt); err != nil {
				return err
			}
		case string:
			if !looksLikeSecretKey(key) || vv == "" {
				continue
			}
			if encrypt {
				enc, err := v.Encrypt(tenantID[:], "tenant_config.tool_settings."+key, vv)
				if err != nil {
					return err
				}
				doc[key] = enc
			} else {
				plain, err := v.Decrypt(tenantID[:], "tenant_config.tool_settings."+key, vv)
				if err != nil {
					// Value was never encrypted (legacy plaintext); mask as-is.
					doc[key] = MaskAPIKey(vv)
					continue
				}
				doc[key] = MaskAPIKey(plain)
			}
		}
	}
	return nil
}
