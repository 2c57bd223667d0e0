package models

import "time"

// Server status values. Only the health prober writes them.
const (
	ServerStatusActive = "active"
	ServerStatusError  = "error"
)

// Server is a remote gateway registered by an admin.
type Server struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string     `gorm:"size:256" json:"description"`
	APIURL      string     `gorm:"column:api_url;size:256;not null" json:"api_url"`
	Status      string     `gorm:"size:16;not null;default:'active'" json:"status"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsActive reports whether the last probe succeeded.
func (s Server) IsActive() bool {
	return s.Status == ServerStatusActive
}
