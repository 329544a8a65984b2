package implementation

import (
	"context"
	"errors"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatStateRepositoryImpl struct {
	db *gorm.DB
}

func NewChatStateRepository(db *gorm.DB) contract.ChatStateRepository {
	return &ChatStateRepositoryImpl{db: db}
}

func (r *ChatStateRepositoryImpl) Find(ctx context.Context, number string) (*entity.ChatState, error) {
	var state entity.ChatState
	err := r.db.WithContext(ctx).Where("number = ?", number).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// Upsert keeps a stored blocked status unless the incoming state itself sets
// it; everything else is overwritten.
func (r *ChatStateRepositoryImpl) Upsert(ctx context.Context, state *entity.ChatState) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "number"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"step":          state.Step,
			"last_activity": state.LastActivity,
			"estado": gorm.Expr(
				"CASE WHEN excluded.estado = '' THEN chat_estados.estado "+
					"WHEN chat_estados.estado = ? AND excluded.estado <> ? THEN chat_estados.estado "+
					"ELSE excluded.estado END",
				entity.StatusBlocked, entity.StatusBlocked,
			),
		}),
	}).Create(state).Error
}

func (r *ChatStateRepositoryImpl) SetStatus(ctx context.Context, number, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.ChatState{}).
		Where("number = ?", number).
		Update("estado", status).Error
}

func (r *ChatStateRepositoryImpl) Delete(ctx context.Context, number string) error {
	return r.db.WithContext(ctx).
		Where("number = ?", number).
		Delete(&entity.ChatState{}).Error
}
