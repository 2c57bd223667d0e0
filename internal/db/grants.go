package db

import (
	"context"

	"github.com/pysugar/wg-provisioner/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddGrant authorizes userID on serverID. Granting twice is a no-op.
func (s *Store) AddGrant(ctx context.Context, userID, serverID uint) error {
	grant := models.AccessGrant{UserID: userID, ServerID: serverID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error
}

// RemoveGrant revokes userID from serverID.
func (s *Store) RemoveGrant(ctx context.Context, userID, serverID uint) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND server_id = ?", userID, serverID).
		Delete(&models.AccessGrant{}).Error
}

// ListGrantsForServer returns the explicit grants of a server.
func (s *Store) ListGrantsForServer(ctx context.Context, serverID uint) ([]models.AccessGrant, error) {
	var grants []models.AccessGrant
	if err := s.db.WithContext(ctx).Where("server_id = ?", serverID).Order("user_id").Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// ServerIDsForUser returns the servers a user is explicitly granted.
func (s *Store) ServerIDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.AccessGrant{}).
		Where("user_id = ?", userID).Order("server_id").Pluck("server_id", &ids).Error
	return ids, err
}

// SetUserAccess replaces the grants of a user and sets its admin flag atomically.
func (s *Store) SetUserAccess(ctx context.Context, userID uint, serverIDs []uint, isAdmin bool) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("is_admin", isAdmin)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.AccessGrant{}).Error; err != nil {
			return err
		}
		for _, serverID := range dedupe(serverIDs) {
			grant := models.AccessGrant{UserID: userID, ServerID: serverID}
			if err := tx.Create(&grant).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
