package chat

import (
	"time"

	"gorm.io/datatypes"
)

type ChatType string

const (
	ChatTypePrivate    ChatType = "PRIVATE"
	ChatTypeGroup      ChatType = "GROUP"
	ChatTypeSupergroup ChatType = "SUPERGROUP"
	ChatTypeChannel    ChatType = "CHANNEL"
)

func (t ChatType) IsGroup() bool {
	return t == ChatTypeGroup || t == ChatTypeSupergroup
}

type ChatStatus string

const (
	ChatStatusActive ChatStatus = "ACTIVE"
	ChatStatusLeft   ChatStatus = "LEFT"
	ChatStatusKicked ChatStatus = "KICKED"
)

// Chat is a conversation surface the bot has seen. Rows are never deleted so
// links and logs survive the bot leaving and rejoining.
type Chat struct {
	ID             string     `gorm:"column:id;primaryKey"`
	OrganizationID string     `gorm:"column:organization_id;not null;uniqueIndex:idx_chats_org_platform"`
	PlatformChatID string     `gorm:"column:platform_chat_id;type:varchar(64);not null;uniqueIndex:idx_chats_org_platform"`
	Type           ChatType   `gorm:"column:type;type:varchar(20);not null"`
	Title          string     `gorm:"column:title;type:varchar(255)"`
	Username       string     `gorm:"column:username;type:varchar(64)"`
	Status         ChatStatus `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'"`
	BotJoinedAt    *time.Time `gorm:"column:bot_joined_at"`
	BotLeftAt      *time.Time `gorm:"column:bot_left_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Chat) TableName() string { return "chats" }

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// MessageLog is the append-only audit trail of text exchanged in a chat. A
// platform message is logged once per direction.
type MessageLog struct {
	ID                string         `gorm:"column:id;primaryKey"`
	OrganizationID    string         `gorm:"column:organization_id;not null;index"`
	ChatID            string         `gorm:"column:chat_id;not null;index;uniqueIndex:idx_chat_message_logs_message"`
	KOLID             *string        `gorm:"column:kol_id;index"`
	Direction         Direction      `gorm:"column:direction;type:varchar(10);not null;uniqueIndex:idx_chat_message_logs_message"`
	PlatformMessageID int64          `gorm:"column:platform_message_id;uniqueIndex:idx_chat_message_logs_message"`
	ReplyToMessageID  *int64         `gorm:"column:reply_to_message_id"`
	SenderPlatformID  string         `gorm:"column:sender_platform_id;type:varchar(64)"`
	SenderUsername    string         `gorm:"column:sender_username;type:varchar(64)"`
	SenderName        string         `gorm:"column:sender_name;type:varchar(255)"`
	Text              string         `gorm:"column:text;type:text"`
	Raw               datatypes.JSON `gorm:"column:raw"`
	SentAt            time.Time      `gorm:"column:sent_at;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (MessageLog) TableName() string { return "chat_message_logs" }
