package db

import (
	"context"

	"github.com/pysugar/wg-provisioner/internal/db/models"
)

// CreateCredential inserts a credential. A second credential for the same
// (server, user) pair fails with ErrDuplicate.
func (s *Store) CreateCredential(ctx context.Context, cred *models.ServerCredential) error {
	if cred.Source == "" {
		cred.Source = models.CredentialSourceProvisioned
	}
	return translate(s.db.WithContext(ctx).Create(cred).Error)
}

// GetCredential returns the credential for (serverID, userID).
func (s *Store) GetCredential(ctx context.Context, serverID, userID uint) (*models.ServerCredential, error) {
	var cred models.ServerCredential
	err := s.db.WithContext(ctx).
		Where("server_id = ? AND user_id = ?", serverID, userID).
		First(&cred).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

// GetCredentialByExternalID returns the credential a chat identity holds on a server.
func (s *Store) GetCredentialByExternalID(ctx context.Context, serverID uint, externalID int64) (*models.ServerCredential, error) {
	var cred models.ServerCredential
	err := s.db.WithContext(ctx).
		Where("server_id = ? AND external_id = ?", serverID, externalID).
		First(&cred).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

// ListCredentialsForServer returns every credential stored for a server.
func (s *Store) ListCredentialsForServer(ctx context.Context, serverID uint) ([]models.ServerCredential, error) {
	var creds []models.ServerCredential
	if err := s.db.WithContext(ctx).Where("server_id = ?", serverID).Order("id").Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// AdminCredential returns the credential used to administer a server: the
// registered operator account, or else one belonging to an admin user. The
// operator account qualifies even after its owner lost the admin flag.
func (s *Store) AdminCredential(ctx context.Context, serverID uint) (*models.ServerCredential, error) {
	var cred models.ServerCredential
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = server_credentials.user_id").
		Where("server_credentials.server_id = ?", serverID).
		Where("(server_credentials.source = ? OR users.is_admin = ?)", models.CredentialSourceRegistered, true).
		Order("CASE WHEN server_credentials.source = 'registered' THEN 0 ELSE 1 END").
		Order("server_credentials.id").
		First(&cred).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

// DeleteCredential removes a credential row.
func (s *Store) DeleteCredential(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.ServerCredential{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
