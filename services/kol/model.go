package kol

import "time"

// KOL is an influencer profile. HomeChatID is the platform chat id agency
// notifications default to.
type KOL struct {
	ID               string    `gorm:"column:id;primaryKey"`
	OrganizationID   string    `gorm:"column:organization_id;not null;index"`
	Name             string    `gorm:"column:name;type:varchar(255);not null"`
	TelegramUsername string    `gorm:"column:telegram_username;type:varchar(64);index"`
	HomeChatID       *string   `gorm:"column:home_chat_id;type:varchar(64)"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (KOL) TableName() string { return "kols" }

type MatchedBy string

const (
	MatchedByUsername MatchedBy = "USERNAME"
	MatchedByCommand  MatchedBy = "COMMAND"
)

// ChatLink records that a KOL was identified in a chat. At most one row exists
// per (chat, KOL).
type ChatLink struct {
	ID             string    `gorm:"column:id;primaryKey"`
	ChatID         string    `gorm:"column:chat_id;not null;uniqueIndex:idx_chat_kol_links_pair"`
	KOLID          string    `gorm:"column:kol_id;not null;uniqueIndex:idx_chat_kol_links_pair"`
	MatchedBy      MatchedBy `gorm:"column:matched_by;type:varchar(20);not null"`
	PlatformUserID *string   `gorm:"column:platform_user_id;type:varchar(64);index"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ChatLink) TableName() string { return "chat_kol_links" }
