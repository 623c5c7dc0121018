package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"datagage/internal/models"
	"datagage/internal/repository"
)

func (s *Store) CreateSource(ctx context.Context, item *models.Source) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetSource(ctx context.Context, id string) (*models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Source
	err := s.db.WithContext(ctx).Where("source_id = ?", strings.TrimSpace(id)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) FindSourceByConnectionID(ctx context.Context, connectionID string) (*models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, nil
	}
	var item models.Source
	err := s.db.WithContext(ctx).Where("external_connection_id = ?", connectionID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) FindSourceByExternalID(ctx context.Context, externalID string) (*models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, nil
	}
	var item models.Source
	err := s.db.WithContext(ctx).Where("external_source_id = ?", externalID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSources(ctx context.Context, params repository.ListSourcesParams) ([]models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Source{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("source_type = ?", strings.TrimSpace(*params.Type))
	}
	query = applyOrder(query, "created_at", nil, "created_at")
	var items []models.Source
	if err := query.
		Limit(normalizeLimit(params.Limit, 500)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSourcesWithConnection(ctx context.Context) ([]models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Source
	if err := s.db.WithContext(ctx).
		Model(&models.Source{}).
		Where("external_connection_id IS NOT NULL AND external_connection_id <> ''").
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateSource writes every provided column in one UPDATE statement and
// returns the row as stored afterwards.
func (s *Store) UpdateSource(ctx context.Context, id string, update repository.SourceUpdate) (*models.Source, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if update.Empty() {
		return nil, repository.ErrNoFieldsProvided
	}
	updates := map[string]any{}
	if update.Name != nil {
		updates["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Status != nil {
		updates["status"] = strings.TrimSpace(*update.Status)
	}
	if update.ConnectionConfiguration != nil {
		updates["connection_configuration"] = update.ConnectionConfiguration
	}
	if update.ExternalSourceID != nil {
		updates["external_source_id"] = *update.ExternalSourceID
	}
	if update.ExternalConnectionID != nil {
		updates["external_connection_id"] = *update.ExternalConnectionID
	}
	if update.LastSync != nil {
		updates["last_sync"] = update.LastSync.UTC()
	}

	var out models.Source
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Source{}).Where("source_id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return tx.Where("source_id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteSource(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	res := s.db.WithContext(ctx).Where("source_id = ?", id).Delete(&models.Source{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLastSync(ctx context.Context, id string, at time.Time) (*models.Source, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.UpdateSource(ctx, id, repository.SourceUpdate{LastSync: &at})
}

func (s *Store) AttachExternalConnectionID(ctx context.Context, id string, connectionID string) (*models.Source, error) {
	connectionID = strings.TrimSpace(connectionID)
	return s.UpdateSource(ctx, id, repository.SourceUpdate{ExternalConnectionID: &connectionID})
}

func (s *Store) CountSourcesByStatus(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return map[string]int64{}, nil
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Source{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
