package implementation

import (
	"context"
	"errors"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsRowId = 1

type AISettingsRepositoryImpl struct {
	db *gorm.DB
}

func NewAISettingsRepository(db *gorm.DB) contract.AISettingsRepository {
	return &AISettingsRepositoryImpl{db: db}
}

func (r *AISettingsRepositoryImpl) Get(ctx context.Context) (*entity.AISettings, error) {
	var settings entity.AISettings
	err := r.db.WithContext(ctx).Where("id = ?", settingsRowId).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			settings = entity.AISettings{Id: settingsRowId, UpdatedAt: time.Now()}
			if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
				return nil, err
			}
			return &settings, nil
		}
		return nil, err
	}
	return &settings, nil
}

// Claim moves the cursor from expected to next inside one transaction,
// locking the settings row. A false result means the expected value was
// already gone: another consumer claimed the message.
func (r *AISettingsRepositoryImpl) Claim(ctx context.Context, expected, next int64) (bool, error) {
	claimed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var settings entity.AISettings
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", settingsRowId).
			First(&settings).Error
		if err != nil {
			return err
		}
		if settings.LastProcessedMessageId != expected {
			return nil
		}
		err = tx.Model(&entity.AISettings{}).
			Where("id = ?", settingsRowId).
			Updates(map[string]interface{}{
				"last_processed_message_id": next,
				"updated_at":                time.Now(),
			}).Error
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (r *AISettingsRepositoryImpl) SetCursor(ctx context.Context, value int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.AISettings{}).
		Where("id = ?", settingsRowId).
		Updates(map[string]interface{}{
			"last_processed_message_id": value,
			"updated_at":                time.Now(),
		}).Error
}

func (r *AISettingsRepositoryImpl) UpdateCatalog(ctx context.Context, basePath string, stats []byte) error {
	return r.db.WithContext(ctx).
		Model(&entity.AISettings{}).
		Where("id = ?", settingsRowId).
		Updates(map[string]interface{}{
			"catalog_base_path": basePath,
			"catalog_stats":     stats,
			"updated_at":        time.Now(),
		}).Error
}
