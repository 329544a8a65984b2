package implementation

import (
	"context"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"

	"gorm.io/gorm"
)

type AILogRepositoryImpl struct {
	db *gorm.DB
}

func NewAILogRepository(db *gorm.DB) contract.AILogRepository {
	return &AILogRepositoryImpl{db: db}
}

func (r *AILogRepositoryImpl) Create(ctx context.Context, log *entity.AILog) error {
	return r.db.WithContext(ctx).Create(log).Error
}
