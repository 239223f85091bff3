package kol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaignhub-botgateway/pkg/db/option"
	"campaignhub-botgateway/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var Module = fx.Module("kol.module",
	fx.Provide(NewService),
)

// Service resolves chat senders to KOL records and links them to chats. It
// never creates KOLs.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[KOL]
	now  func() time.Time
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[KOL](p.DB),
		now:  time.Now,
	}
}

// NormalizeUsername lowercases and drops a leading "@".
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// Resolve finds the organization's KOL whose username matches exactly,
// ignoring case and a stored "@". When several KOLs share the username the
// oldest wins and a warning is logged.
func (s *Service) Resolve(ctx context.Context, organizationID, username string) (*KOL, error) {
	u := NormalizeUsername(username)
	if u == "" {
		return nil, nil
	}

	found, err := s.repo.Find(ctx, &KOL{OrganizationID: organizationID},
		option.WithWhere("LOWER(telegram_username) IN ?", []string{u, "@" + u}),
		option.WithSortBy(option.QuerySortBy{Field: "created_at", OrderBy: option.ASC}),
		option.WithSortBy(option.QuerySortBy{Field: "id", OrderBy: option.ASC}),
		option.WithLimit(2),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve kol by username: %w", err)
	}

	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		zap.L().Warn("duplicate kol username, using the oldest record",
			zap.String("organization_id", organizationID),
			zap.String("username", u),
			zap.String("kol_id", found[0].ID),
		)
	}
	return found[0], nil
}

// ResolveByPlatformUserID finds a KOL through any chat link carrying the
// sender's platform user id, most recently touched link first.
func (s *Service) ResolveByPlatformUserID(ctx context.Context, organizationID, platformUserID string) (*KOL, error) {
	if platformUserID == "" {
		return nil, nil
	}

	var out KOL
	err := s.db.WithContext(ctx).
		Model(&KOL{}).
		Select("kols.*").
		Joins("JOIN chat_kol_links ON chat_kol_links.kol_id = kols.id").
		Where("kols.organization_id = ? AND chat_kol_links.platform_user_id = ?", organizationID, platformUserID).
		Order("chat_kol_links.updated_at DESC").
		Take(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve kol by platform user id: %w", err)
	}
	return &out, nil
}

// Link upserts the (chat, KOL) association. The provenance of the first link
// is kept; later resolutions refresh the timestamp and fill in the platform
// user id, never clearing a known one.
func (s *Service) Link(ctx context.Context, chatID, kolID string, matchedBy MatchedBy, platformUserID string) error {
	now := s.now().UTC()
	row := &ChatLink{
		ID:        s.node.Generate().String(),
		ChatID:    chatID,
		KOLID:     kolID,
		MatchedBy: matchedBy,
	}
	updates := map[string]any{"updated_at": now}
	if platformUserID != "" {
		row.PlatformUserID = &platformUserID
		updates["platform_user_id"] = platformUserID
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "kol_id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("link kol to chat: %w", err)
	}
	return nil
}

// PinHomeChat makes platformChatID the KOL's default notification target.
func (s *Service) PinHomeChat(ctx context.Context, kolID, platformChatID string) error {
	err := s.db.WithContext(ctx).
		Model(&KOL{}).
		Where("id = ?", kolID).
		Update("home_chat_id", platformChatID).Error
	if err != nil {
		return fmt.Errorf("pin home chat: %w", err)
	}
	return nil
}
