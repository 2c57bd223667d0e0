package db

import (
	"context"
	"time"

	"github.com/pysugar/wg-provisioner/internal/db/models"
	"gorm.io/gorm"
)

// CreateServer inserts a server. It never creates credentials.
func (s *Store) CreateServer(ctx context.Context, server *models.Server) error {
	if server.Status == "" {
		server.Status = models.ServerStatusActive
	}
	return translate(s.db.WithContext(ctx).Create(server).Error)
}

// RegisterServer inserts a server together with the operator credential that
// was validated against the gateway.
func (s *Store) RegisterServer(ctx context.Context, server *models.Server, cred *models.ServerCredential) error {
	if server.Status == "" {
		server.Status = models.ServerStatusActive
	}
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(server).Error; err != nil {
			return err
		}
		cred.ServerID = server.ID
		cred.Source = models.CredentialSourceRegistered
		return tx.Create(cred).Error
	}))
}

// GetServer returns the server with the given id.
func (s *Store) GetServer(ctx context.Context, id uint) (*models.Server, error) {
	var server models.Server
	if err := s.db.WithContext(ctx).First(&server, id).Error; err != nil {
		return nil, translate(err)
	}
	return &server, nil
}

// GetServerByName returns the server with the given unique name.
func (s *Store) GetServerByName(ctx context.Context, name string) (*models.Server, error) {
	var server models.Server
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&server).Error; err != nil {
		return nil, translate(err)
	}
	return &server, nil
}

// GetServerByURL returns the server registered for apiURL.
func (s *Store) GetServerByURL(ctx context.Context, apiURL string) (*models.Server, error) {
	var server models.Server
	if err := s.db.WithContext(ctx).Where("api_url = ?", apiURL).First(&server).Error; err != nil {
		return nil, translate(err)
	}
	return &server, nil
}

// ListServers returns all servers ordered by id.
func (s *Store) ListServers(ctx context.Context) ([]models.Server, error) {
	var servers []models.Server
	if err := s.db.WithContext(ctx).Order("id").Find(&servers).Error; err != nil {
		return nil, err
	}
	return servers, nil
}

// UpdateServer changes the descriptive fields of a server.
func (s *Store) UpdateServer(ctx context.Context, id uint, name, description string) (*models.Server, error) {
	res := s.db.WithContext(ctx).Model(&models.Server{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "description": description})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetServer(ctx, id)
}

// UpdateServerStatus records a probe outcome. It touches only status and last_checked.
func (s *Store) UpdateServerStatus(ctx context.Context, id uint, status string, checkedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Server{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "last_checked": checkedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteServer removes a server with its credentials and grants in one transaction.
func (s *Store) DeleteServer(ctx context.Context, id uint) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ?", id).Delete(&models.ServerCredential{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", id).Delete(&models.AccessGrant{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Server{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}
