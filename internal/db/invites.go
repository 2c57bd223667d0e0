package db

import (
	"context"
	"errors"

	"github.com/pysugar/wg-provisioner/internal/db/models"
	"gorm.io/gorm"
)

// CreateInvite inserts an active invite.
func (s *Store) CreateInvite(ctx context.Context, invite *models.Invite) error {
	invite.IsActive = true
	if invite.ServerIDs == nil {
		invite.ServerIDs = []uint{}
	}
	return translate(s.db.WithContext(ctx).Create(invite).Error)
}

// GetInviteByCode returns the invite for code regardless of its state.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (*models.Invite, error) {
	var invite models.Invite
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&invite).Error; err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

// GetInviteUsedBy returns the invite a user redeemed.
func (s *Store) GetInviteUsedBy(ctx context.Context, userID uint) (*models.Invite, error) {
	var invite models.Invite
	if err := s.db.WithContext(ctx).Where("used_by = ?", userID).First(&invite).Error; err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

// ListActiveInvites returns invites that can still be redeemed.
func (s *Store) ListActiveInvites(ctx context.Context) ([]models.Invite, error) {
	var invites []models.Invite
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

// DeactivateInvite makes an invite unusable without deleting it.
func (s *Store) DeactivateInvite(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Invite{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInvite removes an invite.
func (s *Store) DeleteInvite(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Invite{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Redemption is the outcome of a successful invite redemption.
type Redemption struct {
	User   models.User
	Invite models.Invite
}

// RedeemInvite consumes code for the chat identity externalID exactly once.
// The user is created when unknown, authenticated, promoted when the invite
// is an admin invite, and granted the invite's servers. The conditional
// update on is_active makes concurrent redemptions of one code race to a
// single winner; losers get ErrInviteInactive and nothing they wrote survives.
func (s *Store) RedeemInvite(ctx context.Context, code string, externalID int64, displayName string) (*Redemption, error) {
	var out Redemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.Invite
		if err := tx.Where("code = ? AND is_active = ?", code, true).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteInactive
			}
			return err
		}

		var user models.User
		err := tx.Where("external_id = ?", externalID).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{ExternalID: externalID, DisplayName: displayName}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		res := tx.Model(&models.Invite{}).
			Where("id = ? AND is_active = ?", invite.ID, true).
			Updates(map[string]any{"used_by": user.ID, "is_active": false})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInviteInactive
		}

		updates := map[string]any{"is_authenticated": true}
		if invite.IsAdmin {
			updates["is_admin"] = true
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		user.IsAuthenticated = true
		user.IsAdmin = user.IsAdmin || invite.IsAdmin
		if !invite.IsAdmin {
			for _, serverID := range dedupe(invite.ServerIDs) {
				var count int64
				if err := tx.Model(&models.Server{}).Where("id = ?", serverID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					continue
				}
				grant := models.AccessGrant{UserID: user.ID, ServerID: serverID}
				if err := tx.Where(grant).FirstOrCreate(&grant).Error; err != nil {
					return err
				}
			}
		}

		usedBy := user.ID
		invite.UsedBy = &usedBy
		invite.IsActive = false
		out.User = user
		out.Invite = invite
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInviteInactive) {
			return nil, ErrInviteInactive
		}
		return nil, translate(err)
	}
	return &out, nil
}
