package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campaignhub-botgateway/pkg/telegram"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var Module = fx.Module("chat.module",
	fx.Provide(NewService),
)

// ErrUnsupportedMemberStatus is returned for membership statuses that do not
// move the lifecycle, e.g. "restricted".
var ErrUnsupportedMemberStatus = errors.New("chat: unsupported member status")

// Ref identifies a chat as seen in an update.
type Ref struct {
	PlatformChatID string
	Type           ChatType
	Title          string
	Username       string
}

// RefFromTelegram maps the platform chat. ok is false for unknown chat kinds.
func RefFromTelegram(c telegram.Chat) (Ref, bool) {
	ref := Ref{PlatformChatID: c.PlatformID(), Title: c.Title, Username: c.Username}
	switch c.Type {
	case telegram.ChatTypePrivate:
		ref.Type = ChatTypePrivate
		if ref.Title == "" {
			ref.Title = c.Username
		}
	case telegram.ChatTypeGroup:
		ref.Type = ChatTypeGroup
	case telegram.ChatTypeSupergroup:
		ref.Type = ChatTypeSupergroup
	case telegram.ChatTypeChannel:
		ref.Type = ChatTypeChannel
	default:
		return Ref{}, false
	}
	return ref, true
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
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
		now:  time.Now,
	}
}

var chatKey = []clause.Column{{Name: "organization_id"}, {Name: "platform_chat_id"}}

// StatusFromMember maps a platform member status onto the chat lifecycle.
func StatusFromMember(memberStatus string) (ChatStatus, bool) {
	switch memberStatus {
	case telegram.MemberStatusMember, telegram.MemberStatusAdministrator, telegram.MemberStatusCreator:
		return ChatStatusActive, true
	case telegram.MemberStatusLeft:
		return ChatStatusLeft, true
	case telegram.MemberStatusKicked:
		return ChatStatusKicked, true
	default:
		return "", false
	}
}

// ApplyMembership moves the chat to the status implied by the bot's new
// membership, creating the record on first sight. Joining stamps BotJoinedAt
// and clears BotLeftAt; leaving or being kicked stamps BotLeftAt. Replaying the
// same event converges on the same status.
func (s *Service) ApplyMembership(ctx context.Context, organizationID string, ref Ref, memberStatus string) (*Chat, error) {
	status, ok := StatusFromMember(memberStatus)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMemberStatus, memberStatus)
	}

	now := s.now().UTC()
	row := &Chat{
		ID:             s.node.Generate().String(),
		OrganizationID: organizationID,
		PlatformChatID: ref.PlatformChatID,
		Type:           ref.Type,
		Title:          ref.Title,
		Username:       ref.Username,
		Status:         status,
	}
	updates := map[string]any{
		"status":     status,
		"type":       ref.Type,
		"title":      ref.Title,
		"username":   ref.Username,
		"updated_at": now,
	}

	if status == ChatStatusActive {
		row.BotJoinedAt = &now
		updates["bot_joined_at"] = now
		updates["bot_left_at"] = nil
	} else {
		row.BotLeftAt = &now
		updates["bot_left_at"] = now
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: chatKey, DoUpdates: clause.Assignments(updates)}).
		Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert chat membership: %w", err)
	}

	zap.L().Info("chat membership updated",
		zap.String("organization_id", organizationID),
		zap.String("chat_id", ref.PlatformChatID),
		zap.String("status", string(status)),
	)

	return s.Find(ctx, organizationID, ref.PlatformChatID)
}

// Ensure returns the chat record for an inbound message, creating it as ACTIVE
// on first sight. An existing record only gets its descriptive fields
// refreshed; its lifecycle status is left to membership events.
func (s *Service) Ensure(ctx context.Context, organizationID string, ref Ref) (*Chat, error) {
	now := s.now().UTC()
	row := &Chat{
		ID:             s.node.Generate().String(),
		OrganizationID: organizationID,
		PlatformChatID: ref.PlatformChatID,
		Type:           ref.Type,
		Title:          ref.Title,
		Username:       ref.Username,
		Status:         ChatStatusActive,
		BotJoinedAt:    &now,
	}
	updates := map[string]any{
		"type":       ref.Type,
		"title":      ref.Title,
		"username":   ref.Username,
		"updated_at": now,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: chatKey, DoUpdates: clause.Assignments(updates)}).
		Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("ensure chat: %w", err)
	}

	return s.Find(ctx, organizationID, ref.PlatformChatID)
}

func (s *Service) Find(ctx context.Context, organizationID, platformChatID string) (*Chat, error) {
	var out Chat
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND platform_chat_id = ?", organizationID, platformChatID).
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return &out, nil
}

var logKey = []clause.Column{{Name: "chat_id"}, {Name: "direction"}, {Name: "platform_message_id"}}

// AppendLog stores one audit entry. Entries are never updated; a redelivered
// message that is already logged is skipped.
func (s *Service) AppendLog(ctx context.Context, entry *MessageLog) error {
	if entry.ID == "" {
		entry.ID = s.node.Generate().String()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = s.now().UTC()
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: logKey, DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return fmt.Errorf("append message log: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		zap.L().Debug("message already logged",
			zap.String("chat_id", entry.ChatID),
			zap.String("direction", string(entry.Direction)),
			zap.Int64("platform_message_id", entry.PlatformMessageID),
		)
	}
	return nil
}
