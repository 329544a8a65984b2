package implementation

import (
	"context"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepositoryImpl struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{db: db}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var messages []*entity.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) UnconsumedForAI(ctx context.Context, afterId int64, handoffStep string, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Joins("JOIN chat_estados ON chat_estados.number = mensajes.number").
		Where("mensajes.id > ?", afterId).
		Where("mensajes.tipo = ?", entity.KindClient).
		Where("mensajes.mensaje <> ''").
		Where("mensajes.step = ?", handoffStep).
		Where("chat_estados.step = ?", handoffStep).
		Where("chat_estados.estado IS NULL OR chat_estados.estado <> ?", entity.StatusBlocked).
		Order("mensajes.id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) RecentHistory(ctx context.Context, number string, beforeId int64, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("number = ?", number).
		Where("id < ?", beforeId).
		Where("tipo IN ?", []string{entity.KindClient, entity.KindBot}).
		Where("mensaje <> ''").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// Newest-first fetch, chronological return.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) LatestId(ctx context.Context) (int64, error) {
	var latest int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&latest).Error
	if err != nil {
		return 0, err
	}
	return latest, nil
}

func (r *MessageRepositoryImpl) MarkProcessed(ctx context.Context, waId string) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entity.ProcessedMessage{WaId: waId})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
