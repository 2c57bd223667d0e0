package models

import "time"

// Credential sources.
//   - registered: entered by an admin when the server was registered; this is the
//     gateway operator's own account and is never pruned, repaired or updated.
//   - provisioned: generated locally and pushed to the gateway.
const (
	CredentialSourceRegistered  = "registered"
	CredentialSourceProvisioned = "provisioned"
)

// ServerCredential is the per (server, user) remote identity.
// The pair (ServerID, UserID) is unique.
type ServerCredential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ServerID        uint      `gorm:"uniqueIndex:uix_serverid_userid;not null" json:"server_id"`
	UserID          uint      `gorm:"uniqueIndex:uix_serverid_userid;not null;index" json:"user_id"`
	ExternalID      int64     `gorm:"not null" json:"external_id"`
	Identifier      string    `gorm:"size:128;not null" json:"identifier"`
	APIToken        string    `gorm:"size:128;not null" json:"-"`
	AccountPassword string    `gorm:"size:64" json:"-"`
	Source          string    `gorm:"size:16;not null;default:'provisioned'" json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsRegistered reports whether the credential was entered at server registration.
func (c ServerCredential) IsRegistered() bool {
	return c.Source == CredentialSourceRegistered
}
