package models

// AccessGrant authorizes a user to hold an account on a server.
type AccessGrant struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	UserID   uint `gorm:"uniqueIndex:idx_grant_user_server;not null" json:"user_id"`
	ServerID uint `gorm:"uniqueIndex:idx_grant_user_server;not null;index" json:"server_id"`
}
