package contract

import (
	"context"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/specification"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)

	// UnconsumedForAI returns client messages newer than afterId whose chat
	// currently sits in the handoff step and is not blocked, id ascending.
	UnconsumedForAI(ctx context.Context, afterId int64, handoffStep string, limit int) ([]*entity.Message, error)

	// RecentHistory returns up to limit client/bot messages older than
	// beforeId for a number, in chronological order.
	RecentHistory(ctx context.Context, number string, beforeId int64, limit int) ([]*entity.Message, error)

	LatestId(ctx context.Context) (int64, error)

	// MarkProcessed records a transport message id; returns false when the
	// id was already seen (duplicate delivery).
	MarkProcessed(ctx context.Context, waId string) (bool, error)
}
