package models

import "time"

// User is a local directory entry keyed by its chat-platform identity.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ExternalID      int64     `gorm:"uniqueIndex;not null" json:"external_id"`
	DisplayName     string    `gorm:"size:128;not null" json:"display_name"`
	Email           *string   `gorm:"uniqueIndex;size:128" json:"email,omitempty"` // NULL allows many users without email
	Phone           string    `gorm:"size:20" json:"phone"`
	Department      string    `gorm:"size:64" json:"department"`
	IsAdmin         bool      `gorm:"not null;default:false" json:"is_admin"`
	IsAuthenticated bool      `gorm:"not null;default:false" json:"is_authenticated"`
	IsRegistered    bool      `gorm:"not null;default:false" json:"is_registered"`
	CreatedAt       time.Time `json:"created_at"`
}

// EmailValue returns the email or an empty string.
func (u User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
