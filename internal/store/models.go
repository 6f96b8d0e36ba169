package store

import (
	"time"

	"github.com/google/uuid"
)

// Tenant statuses, per the provisioner's state machine.
const (
	StatusDraft        = "draft"
	StatusProvisioning = "provisioning"
	StatusRunning      = "running"
	StatusStopped      = "stopped"
	StatusError        = "error"
	StatusDeleting     = "deleting"
)

type Tenant struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Status      string
	Plan        string
	Port        *int32
	UID         *int32
	PairingCode *string
	CreatedAt   time.Time
}

type TenantConfig struct {
	TenantID       uuid.UUID
	Provider       string
	Model          string
	Temperature    float64
	AutonomyLevel  string
	SystemPrompt   *string
	APIKeyEnc      string
	ExtraJSON      []byte
}

type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	IsSuperAdmin bool
	PasswordHash *string
	CreatedAt    time.Time
}

// Member role literals, mirrored by internal/auth.Role's ordered hierarchy.
// Kept here as plain strings so the store package has no dependency on auth.
const (
	MemberRoleViewer      = "viewer"
	MemberRoleContributor = "contributor"
	MemberRoleManager     = "manager"
	MemberRoleOwner       = "owner"
)

type Member struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Role      string
	CreatedAt time.Time
}

// MemberWithUser is the joined shape used by list_members.
type MemberWithUser struct {
	Member
	Email       string
	DisplayName string
}

// TenantRole is the advisory snapshot embedded in the session token and
// returned from /auth/me.
type TenantRole struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	TenantName string    `json:"name,omitempty"`
	TenantSlug string    `json:"slug,omitempty"`
	Role       string    `json:"role"`
}

type Channel struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Kind      string
	Enabled   bool
	ConfigEnc string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OTPToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Hash      string
	Salt      string
	ExpiresAt time.Time
	Used      bool
	Attempts  int
	CreatedAt time.Time
}

type AuditEntry struct {
	ID           uuid.UUID
	ActorID      *uuid.UUID
	Action       string
	ResourceKind string
	ResourceID   string
	Details      []byte
	CreatedAt    time.Time
}

type ResourceSnapshot struct {
	ID          int64
	TenantID    uuid.UUID
	TS          time.Time
	CPUPercent  float64
	MemBytes    int64
	MemLimit    int64
	DiskBytes   int64
	NetInBytes  int64
	NetOutBytes int64
	PIDs        int32
}

// RecognizedChannelKinds is the closed set of channel kinds the admin API
// accepts; unknown kinds are rejected at validation.
var RecognizedChannelKinds = map[string]bool{
	"telegram": true,
	"discord":  true,
	"slack":    true,
	"whatsapp": true,
}
