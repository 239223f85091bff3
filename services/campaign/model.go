package campaign

import (
	"time"
)

type CampaignStatus string

const (
	CampaignStatusDraft           CampaignStatus = "DRAFT"
	CampaignStatusPendingApproval CampaignStatus = "PENDING_APPROVAL"
	CampaignStatusActive          CampaignStatus = "ACTIVE"
	CampaignStatusPaused          CampaignStatus = "PAUSED"
	CampaignStatusCompleted       CampaignStatus = "COMPLETED"
	CampaignStatusCancelled       CampaignStatus = "CANCELLED"
)

type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "PENDING"
	AssignmentStatusConfirmed AssignmentStatus = "CONFIRMED"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
	AssignmentStatusCancelled AssignmentStatus = "CANCELLED"
)

// OpenAssignmentStatuses are the assignment states that still accept
// deliverables.
var OpenAssignmentStatuses = []AssignmentStatus{AssignmentStatusPending, AssignmentStatusConfirmed}

type Campaign struct {
	ID                 string         `gorm:"column:id;primaryKey"`
	OrganizationID     string         `gorm:"column:organization_id;not null;index"`
	Name               string         `gorm:"column:name;type:varchar(255);not null"`
	Description        string         `gorm:"column:description;type:text"`
	Status             CampaignStatus `gorm:"column:status;type:varchar(30);not null;default:'DRAFT'"`
	TotalBudget        float64        `gorm:"column:total_budget;type:decimal(14,2);not null;default:0"`
	NotificationChatID *string        `gorm:"column:notification_chat_id;type:varchar(64)"`
	StartDate          *time.Time     `gorm:"column:start_date"`
	EndDate            *time.Time     `gorm:"column:end_date"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Campaign) TableName() string { return "campaigns" }

// ========================================================
// Helper methods
// ========================================================

// HasNotificationChat reports whether client notifications are configured.
func (c *Campaign) HasNotificationChat() bool {
	return c.NotificationChatID != nil && *c.NotificationChatID != ""
}

// DaysActive counts whole days between creation and now, never negative.
func (c *Campaign) DaysActive(now time.Time) int {
	d := now.Sub(c.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Assignment links one KOL to one campaign.
type Assignment struct {
	ID               string           `gorm:"column:id;primaryKey"`
	CampaignID       string           `gorm:"column:campaign_id;not null;index"`
	KOLID            string           `gorm:"column:kol_id;not null;index"`
	Status           AssignmentStatus `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	AllocatedBudget  float64          `gorm:"column:allocated_budget;type:decimal(14,2);not null;default:0"`
	RequiredPosts    int              `gorm:"column:required_posts;not null;default:0"`
	RequiredThreads  int              `gorm:"column:required_threads;not null;default:0"`
	RequiredRetweets int              `gorm:"column:required_retweets;not null;default:0"`
	RequiredSpaces   int              `gorm:"column:required_spaces;not null;default:0"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Campaign Campaign `gorm:"foreignKey:CampaignID"`
}

func (Assignment) TableName() string { return "campaign_kol_assignments" }
