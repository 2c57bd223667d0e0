package db

import (
	"context"
	"errors"

	"github.com/pysugar/wg-provisioner/internal/db/models"
	"gorm.io/gorm"
)

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

// EnsureUser returns the user for externalID, creating it on first contact.
// The very first user of an empty directory becomes an admin.
func (s *Store) EnsureUser(ctx context.Context, externalID int64, displayName string) (*models.User, bool, error) {
	var user models.User
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("external_id = ?", externalID).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		user = models.User{
			ExternalID:      externalID,
			DisplayName:     displayName,
			IsAdmin:         count == 0,
			IsAuthenticated: count == 0,
		}
		created = true
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, false, translate(err)
	}
	return &user, created, nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByExternalID returns the user for a chat-platform id.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByEmail returns the user owning email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CompleteRegistration stores profile fields and marks the user registered.
func (s *Store) CompleteRegistration(ctx context.Context, id uint, email, phone, department string) error {
	var emailValue *string
	if email != "" {
		emailValue = &email
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"email":         emailValue,
		"phone":         phone,
		"department":    department,
		"is_registered": true,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserAuthenticated flips the authenticated flag.
func (s *Store) SetUserAuthenticated(ctx context.Context, id uint, value bool) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("is_authenticated", value).Error
}

// DeleteUser removes a user with its grants, credentials and redeemed invites.
// Remote accounts are pruned by the next reconciliation pass.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.AccessGrant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.ServerCredential{}).Error; err != nil {
			return err
		}
		if err := tx.Where("used_by = ?", id).Delete(&models.Invite{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}
