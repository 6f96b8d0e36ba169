// Package configrender writes the plaintext manifest file a tenant
// container reads at startup, and performs the filesystem-level
// surgery the pairing-reset operation needs. Output is deterministic:
// stable key ordering, no timestamps, no random nonces, so the same
// persisted config always produces byte-identical bytes.
package configrender

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v2"

	"github.com/zeroclaw-labs/platform/internal/store"
	"github.com/zeroclaw-labs/platform/internal/vault"
)

const (
	manifestFileName = "agent.yaml"
	pairingFileName  = "pairing_code"
)

// Renderer implements provisioner.ConfigRenderer against a local directory
// tree, one subdirectory per tenant slug.
type Renderer struct {
	baseDir string
	vault   *vault.Vault
}

func New(baseDir string, v *vault.Vault) *Renderer {
	return &Renderer{baseDir: baseDir, vault: v}
}

func (r *Renderer) tenantDir(slug string) string {
	return filepath.Join(r.baseDir, slug)
}

// manifest is the YAML shape written to disk. Field order here fixes the
// marshaled key order since encoding/yaml (and go.yaml.in/yaml) emits
// struct fields in declaration order, not alphabetically.
type manifest struct {
	Name          string            `yaml:"name"`
	Slug          string            `yaml:"slug"`
	Provider      string            `yaml:"provider"`
	Model         string            `yaml:"model"`
	Temperature   float64           `yaml:"temperature"`
	AutonomyLevel string            `yaml:"autonomy_level"`
	SystemPrompt  string            `yaml:"system_prompt,omitempty"`
	APIKey        string            `yaml:"api_key"`
	Extra         map[string]any    `yaml:"extra,omitempty"`
}

// Render writes the manifest file for tenant. apiKeyPlain is the
// already-decrypted key; Render never decrypts tool_settings secrets
// embedded in extra_json beyond what the caller has already resolved
// through vault.EncryptToolSecrets at write time — those are written to the
// manifest as their encrypted envelope strings, and no vault key is mounted
// into the tenant container.
func (r *Renderer) Render(ctx context.Context, tenant store.Tenant, cfg store.TenantConfig, apiKeyPlain string) error {
	dir := r.tenantDir(tenant.Slug)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("configrender: creating tenant dir: %w", err)
	}

	var extra map[string]any
	if len(cfg.ExtraJSON) > 0 {
		if err := json.Unmarshal(cfg.ExtraJSON, &extra); err != nil {
			return fmt.Errorf("configrender: decoding extra_json: %w", err)
		}
	}

	m := manifest{
		Name:          tenant.Name,
		Slug:          tenant.Slug,
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Temperature:   cfg.Temperature,
		AutonomyLevel: cfg.AutonomyLevel,
		APIKey:        apiKeyPlain,
		Extra:         extra,
	}
	if cfg.SystemPrompt != nil {
		m.SystemPrompt = *cfg.SystemPrompt
	}

	out, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("configrender: marshaling manifest: %w", err)
	}

	path := filepath.Join(dir, manifestFileName)
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("configrender: writing manifest: %w", err)
	}
	return nil
}

// ReadPairingCode reads the pairing code the tenant container wrote after
// first boot, if any. Absence is not an error: not every provider/runtime
// combination uses pairing.
func (r *Renderer) ReadPairingCode(ctx context.Context, slug string) (string, error) {
	path := filepath.Join(r.tenantDir(slug), pairingFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("configrender: reading pairing code: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// StripPairedTokens removes any previously paired client session file so
// the next boot re-enters pairing mode and mints a fresh code.
func (r *Renderer) StripPairedTokens(ctx context.Context, slug string) error {
	dir := r.tenantDir(slug)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("configrender: listing tenant dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "paired_") || strings.HasSuffix(e.Name(), ".session") {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("configrender: removing %s: %w", e.Name(), err)
			}
		}
	}
	if err := os.Remove(filepath.Join(dir, pairingFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("configrender: removing pairing code: %w", err)
	}
	return nil
}

// EnsureOwnership chowns the tenant directory tree to the tenant's assigned
// uid, matching the container's unprivileged user so bind-mounted files
// remain writable inside the sandbox.
func (r *Renderer) EnsureOwnership(ctx context.Context, slug string, uid int32) error {
	dir := r.tenantDir(slug)
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return os.Chown(path, int(uid), int(uid))
	})
}
