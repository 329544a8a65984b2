package implementation

import (
	"context"
	"errors"
	"strings"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/specification"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/normalize"

	"gorm.io/gorm"
)

// Words too generic to act as catalog image keywords.
var keywordStopwords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "los": {}, "las": {}, "un": {}, "una": {},
	"del": {}, "para": {}, "con": {}, "por": {}, "que": {}, "ver": {},
	"foto": {}, "fotos": {}, "imagen": {}, "imagenes": {}, "quiero": {},
	"mas": {}, "info": {},
}

type RuleRepositoryImpl struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) contract.RuleRepository {
	return &RuleRepositoryImpl{db: db}
}

func (r *RuleRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RuleRepositoryImpl) FindByStep(ctx context.Context, step string) ([]*entity.Rule, error) {
	var rules []*entity.Rule
	err := r.db.WithContext(ctx).
		Where("step = ?", step).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *RuleRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Rule, error) {
	var rule entity.Rule
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *RuleRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Rule, error) {
	var rules []*entity.Rule
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// CatalogKeywords extracts keyword-to-image pairings from image rules so the
// AI worker can offer rule-configured photos alongside retrieval hits.
func (r *RuleRepositoryImpl) CatalogKeywords(ctx context.Context) ([]*entity.CatalogKeyword, error) {
	var rules []*entity.Rule
	err := r.db.WithContext(ctx).
		Where("response_kind = ? AND media_url IS NOT NULL AND media_url <> ''", "image").
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var keywords []*entity.CatalogKeyword
	for _, rule := range rules {
		media := rule.MediaURLs()
		if len(media) == 0 {
			continue
		}
		for _, trigger := range rule.Triggers() {
			if trigger == "*" {
				continue
			}
			for _, token := range normalize.Tokens(trigger) {
				if !usableKeyword(token) {
					continue
				}
				key := token + "|" + media[0]
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				keywords = append(keywords, &entity.CatalogKeyword{
					Keyword:  token,
					MediaURL: media[0],
					Step:     rule.Step,
				})
			}
		}
	}
	return keywords, nil
}

func usableKeyword(token string) bool {
	if _, stop := keywordStopwords[token]; stop {
		return false
	}
	if len(token) >= 3 {
		return true
	}
	return strings.ContainsAny(token, "0123456789")
}
