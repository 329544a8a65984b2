package contract

import (
	"context"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
)

type AILogRepository interface {
	Create(ctx context.Context, log *entity.AILog) error
}
