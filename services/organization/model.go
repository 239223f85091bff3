package organization

import "time"

// Organization is the tenant boundary. WebhookSecret authenticates inbound
// updates and BotToken authorises outbound sends.
type Organization struct {
	ID            string    `gorm:"column:id;primaryKey"`
	Name          string    `gorm:"column:name;type:varchar(255);not null"`
	Slug          string    `gorm:"column:slug;uniqueIndex"`
	WebhookSecret string    `gorm:"column:webhook_secret;type:varchar(255);uniqueIndex"`
	BotToken      string    `gorm:"column:bot_token;type:varchar(255)"`
	BotUsername   string    `gorm:"column:bot_username;type:varchar(64)"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Organization) TableName() string { return "organizations" }
