package contract

import (
	"context"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
)

type ChatStateRepository interface {
	Find(ctx context.Context, number string) (*entity.ChatState, error)

	// Upsert writes the state but never downgrades a blocked status unless
	// the incoming state itself sets it.
	Upsert(ctx context.Context, state *entity.ChatState) error

	// SetStatus overrides the status explicitly, including unblocking.
	SetStatus(ctx context.Context, number, status string) error

	Delete(ctx context.Context, number string) error
}
