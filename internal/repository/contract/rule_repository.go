package contract

import (
	"context"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/specification"
)

type RuleRepository interface {
	// FindByStep returns every rule for a step ordered by id ascending.
	// The ordering is the tie-break when several triggers match.
	FindByStep(ctx context.Context, step string) ([]*entity.Rule, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Rule, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Rule, error)

	// CatalogKeywords derives keyword-to-image pairings from image rules.
	CatalogKeywords(ctx context.Context) ([]*entity.CatalogKeyword, error)
}
