package models

import "time"

// Invite is a one-time registration code.
// ServerIDs is ignored when IsAdmin is set: admins reach every server.
type Invite struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Code            string    `gorm:"uniqueIndex;size:64;not null" json:"code"`
	ServerIDs       []uint    `gorm:"type:text;not null;serializer:json" json:"server_ids"`
	IsAdmin         bool      `gorm:"not null;default:false" json:"is_admin"`
	AdminExternalID int64     `gorm:"not null;index" json:"admin_external_id"`
	UsedBy          *uint     `gorm:"index" json:"used_by,omitempty"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}
