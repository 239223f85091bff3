package bootstrap

import (
	"context"
	"fmt"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/pkg/db"
	"campaignhub-botgateway/pkg/repository"
	"campaignhub-botgateway/services/campaign"
	"campaignhub-botgateway/services/chat"
	"campaignhub-botgateway/services/deliverable"
	"campaignhub-botgateway/services/kol"
	"campaignhub-botgateway/services/organization"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the gateway owns, in dependency order.
var Models = []any{
	&organization.Organization{},
	&chat.Chat{},
	&chat.MessageLog{},
	&kol.KOL{},
	&kol.ChatLink{},
	&campaign.Campaign{},
	&campaign.Assignment{},
	&deliverable.Post{},
}

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	config *config.Config
	repo   repository.Repository[organization.Organization]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		config: p.Config,
		repo:   repository.ProvideStore[organization.Organization](p.DB),
	}
}

func (s *Service) Migrate(ctx context.Context) error {
	if !s.config.Database.AutoMigrate {
		zap.L().Info("[bootstrap] Auto migration disabled")
		return nil
	}

	if err := s.db.WithContext(ctx).AutoMigrate(Models...); err != nil {
		zap.L().Error("[bootstrap] Migration failed", zap.Error(err))
		return fmt.Errorf("auto migrate: %w", err)
	}

	zap.L().Info("[bootstrap] Schema migrated", zap.Int("tables", len(Models)))
	return nil
}

// SeedOrganization creates the configured organization once. It reports
// whether a row was created.
func (s *Service) SeedOrganization(ctx context.Context) bool {
	b := s.config.Bootstrap
	if b.Slug == "" || b.WebhookSecret == "" || b.BotToken == "" {
		zap.L().Debug("[bootstrap] Organization seed not configured")
		return false
	}

	exist, err := s.repo.FindOne(ctx, &organization.Organization{Slug: b.Slug})
	if err != nil {
		zap.L().Error("[bootstrap] Error checking organization", zap.Error(err))
		return false
	}
	if exist != nil {
		zap.L().Info("[bootstrap] Organization already exists", zap.String("slug", b.Slug))
		return false
	}

	name := b.Name
	if name == "" {
		name = b.Slug
	}

	org := &organization.Organization{
		ID:            s.node.Generate().String(),
		Name:          name,
		Slug:          b.Slug,
		WebhookSecret: b.WebhookSecret,
		BotToken:      b.BotToken,
		BotUsername:   b.BotUsername,
	}
	if err := s.repo.Create(ctx, org); err != nil {
		if db.IsUniqueViolation(err) {
			zap.L().Info("[bootstrap] Organization created concurrently", zap.String("slug", b.Slug))
			return false
		}
		zap.L().Error("[bootstrap] Failed to create organization", zap.Error(err))
		return false
	}

	zap.L().Info("[bootstrap] Organization created", zap.String("slug", b.Slug), zap.String("organization_id", org.ID))
	return true
}
