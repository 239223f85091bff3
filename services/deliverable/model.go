package deliverable

import (
	"time"

	"gorm.io/datatypes"
)

type PostType string

const (
	PostTypePost    PostType = "POST"
	PostTypeThread  PostType = "THREAD"
	PostTypeRetweet PostType = "RETWEET"
	PostTypeSpace   PostType = "SPACE"
)

type PostStatus string

const (
	PostStatusDraft    PostStatus = "DRAFT"
	PostStatusPosted   PostStatus = "POSTED"
	PostStatusApproved PostStatus = "APPROVED"
	PostStatusRejected PostStatus = "REJECTED"
)

// Post is one deliverable counted against an assignment. ExternalID is the
// platform content id; the unique index on (organization_id, external_id)
// is what makes submission idempotent. Drafts leave it NULL and are instead
// unique per source message.
type Post struct {
	ID              string         `gorm:"column:id;primaryKey"`
	OrganizationID  string         `gorm:"column:organization_id;not null;uniqueIndex:idx_posts_org_external;uniqueIndex:idx_posts_org_source_message"`
	ExternalID      *string        `gorm:"column:external_id;type:varchar(64);uniqueIndex:idx_posts_org_external"`
	CampaignID      string         `gorm:"column:campaign_id;not null;index"`
	AssignmentID    string         `gorm:"column:assignment_id;not null;index"`
	KOLID           string         `gorm:"column:kol_id;not null;index"`
	Type            PostType       `gorm:"column:type;type:varchar(20);not null"`
	Status          PostStatus     `gorm:"column:status;type:varchar(20);not null"`
	URL             *string        `gorm:"column:url;type:varchar(512)"`
	Content         string         `gorm:"column:content;type:text"`
	PostedAt        *time.Time     `gorm:"column:posted_at"`
	Impressions     int64          `gorm:"column:impressions;not null;default:0"`
	Likes           int64          `gorm:"column:likes;not null;default:0"`
	Retweets        int64          `gorm:"column:retweets;not null;default:0"`
	Replies         int64          `gorm:"column:replies;not null;default:0"`
	Quotes          int64          `gorm:"column:quotes;not null;default:0"`
	FetchPayload    datatypes.JSON `gorm:"column:fetch_payload"`
	SourceChatID    string         `gorm:"column:source_chat_id;type:varchar(64);uniqueIndex:idx_posts_org_source_message"`
	SourceMessageID *int64         `gorm:"column:source_message_id;uniqueIndex:idx_posts_org_source_message"`
	SubmittedBy     string         `gorm:"column:submitted_by;type:varchar(64)"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Post) TableName() string { return "posts" }
