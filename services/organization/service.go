package organization

import (
	"context"
	"fmt"
	"strings"

	"campaignhub-botgateway/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("organization.module",
	fx.Provide(NewService),
)

type Service struct {
	repo repository.Repository[Organization]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		repo: repository.ProvideStore[Organization](p.DB),
	}
}

// FindByWebhookSecret loads the organization owning secret, or nil when no
// organization does. A blank secret never matches.
func (s *Service) FindByWebhookSecret(ctx context.Context, secret string) (*Organization, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, nil
	}

	org, err := s.repo.FindOne(ctx, &Organization{WebhookSecret: secret})
	if err != nil {
		return nil, fmt.Errorf("find organization by webhook secret: %w", err)
	}
	return org, nil
}
