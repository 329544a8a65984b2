package contract

import (
	"context"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
)

type AISettingsRepository interface {
	Get(ctx context.Context) (*entity.AISettings, error)

	// Claim advances the cursor from expected to next atomically. A false
	// result means another consumer won the race; that is not an error.
	Claim(ctx context.Context, expected, next int64) (bool, error)

	// SetCursor writes the cursor unconditionally (rollback, fast-forward).
	SetCursor(ctx context.Context, value int64) error

	UpdateCatalog(ctx context.Context, basePath string, stats []byte) error
}
