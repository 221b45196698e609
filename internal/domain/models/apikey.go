package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIKeyEnvironment selects the key prefix
type APIKeyEnvironment string

const (
	APIKeyEnvProduction APIKeyEnvironment = "production"
	APIKeyEnvTest       APIKeyEnvironment = "test"
)

// Prefix returns the public key prefix for the environment
func (e APIKeyEnvironment) Prefix() string {
	if e == APIKeyEnvTest {
		return "sk_test_"
	}
	return "sk_live_"
}

// Valid reports whether e is a known environment
func (e APIKeyEnvironment) Valid() bool {
	return e == APIKeyEnvProduction || e == APIKeyEnvTest
}

// APIKeyStatus is the lifecycle state of a key
type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
)

// Permission is a scope granted to an API key
type Permission string

const (
	PermScanRead       Permission = "scan:read"
	PermScanWrite      Permission = "scan:write"
	PermThreatsRead    Permission = "threats:read"
	PermWebhooksManage Permission = "webhooks:manage"
	PermKeysManage     Permission = "keys:manage"
)

// AllPermissions lists every known permission
var AllPermissions = []Permission{
	PermScanRead,
	PermScanWrite,
	PermThreatsRead,
	PermWebhooksManage,
	PermKeysManage,
}

// DefaultPermissions are granted when a key is created without explicit scopes
var DefaultPermissions = []Permission{PermScanRead, PermScanWrite}

// Valid reports whether p is a known permission
func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// APIKey is a credential used to call the scan API. The plaintext key is
// never stored; only its SHA-256 hash.
type APIKey struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	Label       string            `json:"label" db:"label"`
	Environment APIKeyEnvironment `json:"environment" db:"environment"`
	Prefix      string            `json:"prefix" db:"prefix"`
	Suffix      string            `json:"-" db:"suffix"`
	KeyHash     string            `json:"-" db:"key_hash"`
	Permissions []Permission      `json:"permissions" db:"permissions"`
	Usage       int64             `json:"usage" db:"usage"`
	Quota       int64             `json:"quota" db:"quota"`
	Primary     bool              `json:"primary" db:"is_primary"`
	Status      APIKeyStatus      `json:"status" db:"status"`
	QuotaWarned bool              `json:"-" db:"quota_warned"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty" db:"expires_at"`
	LastUsedAt  *time.Time        `json:"last_used_at,omitempty" db:"last_used_at"`
}

// MaskedKey renders the key for display: prefix, eight bullets, last four
func (k *APIKey) MaskedKey() string {
	return k.Prefix + strings.Repeat("•", 8) + k.Suffix
}

// HasPermission reports whether the key grants p
func (k *APIKey) HasPermission(p Permission) bool {
	for _, x := range k.Permissions {
		if x == p {
			return true
		}
	}
	return false
}

// IsExpired reports whether the key has passed its expiry at t
func (k *APIKey) IsExpired(t time.Time) bool {
	return k.ExpiresAt != nil && !t.Before(*k.ExpiresAt)
}

// APIKeyView is the JSON representation returned to clients
type APIKeyView struct {
	*APIKey
	Masked string `json:"masked_key"`
}

// View wraps the key with its masked form
func (k *APIKey) View() APIKeyView {
	return APIKeyView{APIKey: k, Masked: k.MaskedKey()}
}

// IssuedAPIKey is returned once when a key is created or regenerated
type IssuedAPIKey struct {
	APIKeyView
	Key string `json:"key"`
}

// CreateAPIKeyRequest is the input for creating a key
type CreateAPIKeyRequest struct {
	Label         string            `json:"label"`
	Environment   APIKeyEnvironment `json:"environment"`
	Permissions   []Permission      `json:"permissions,omitempty"`
	Quota         int64             `json:"quota,omitempty"`
	ExpiresInDays int               `json:"expires_in_days,omitempty"`
}

// UpdateAPIKeyRequest is the input for editing a key
type UpdateAPIKeyRequest struct {
	Label       *string      `json:"label,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	Primary     *bool        `json:"primary,omitempty"`
	Quota       *int64       `json:"quota,omitempty"`
}
