package implementation

import (
	"context"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRoleRepositoryImpl struct {
	db *gorm.DB
}

func NewChatRoleRepository(db *gorm.DB) contract.ChatRoleRepository {
	return &ChatRoleRepositoryImpl{db: db}
}

func (r *ChatRoleRepositoryImpl) Assign(ctx context.Context, number string, roleId int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entity.ChatRole{Number: number, RoleId: roleId, CreatedAt: time.Now()}).Error
}
