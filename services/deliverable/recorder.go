package deliverable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/pkg/db"
	"campaignhub-botgateway/pkg/postfetch"
	"campaignhub-botgateway/pkg/task"
	"campaignhub-botgateway/pkg/telegram"
	"campaignhub-botgateway/services/campaign"
	"campaignhub-botgateway/services/kol"
	"campaignhub-botgateway/services/notify"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var Module = fx.Module("deliverable.module",
	fx.Provide(
		NewRedisGuard,
		NewRecorder,
	),
)

var (
	ErrAlreadySubmitted = errors.New("deliverable already submitted")
	// ErrSubmissionInProgress means another submission of the same post holds
	// the lock and has not finished; nothing is recorded yet.
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrFetchFailed          = errors.New("could not fetch post")
	ErrDuplicateDraft       = errors.New("draft already recorded for this message")
)

var recordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "botgateway_deliverables_total",
	Help: "Deliverable submissions by result.",
}, []string{"status", "result"})

type Recorder struct {
	db       *gorm.DB
	node     *snowflake.Node
	fetcher  postfetch.Fetcher
	sender   notify.Sender
	enqueuer task.Enqueuer
	guard    SubmissionGuard
	queue    string
	now      func() time.Time
}

type RecorderParams struct {
	fx.In
	Config   *config.Config
	DB       *gorm.DB
	Node     *snowflake.Node
	Fetcher  postfetch.Fetcher
	Sender   notify.Sender
	Enqueuer task.Enqueuer
	Guard    SubmissionGuard `optional:"true"`
}

func NewRecorder(p RecorderParams) *Recorder {
	guard := p.Guard
	if guard == nil {
		guard = noopGuard{}
	}
	queue := p.Config.Submission.TaskQueue
	if queue == "" {
		queue = "default"
	}
	return &Recorder{
		db:       p.DB,
		node:     p.Node,
		fetcher:  p.Fetcher,
		sender:   p.Sender,
		enqueuer: p.Enqueuer,
		guard:    guard,
		queue:    queue,
		now:      time.Now,
	}
}

type DraftInput struct {
	OrganizationID string
	Assignment     *campaign.Assignment
	KOL            *kol.KOL
	Content        string
	SourceChatID   string
	// SourceMessageID is the platform message carrying the draft. Zero
	// disables deduplication.
	SourceMessageID int64
	SubmittedBy     string
}

// RecordDraft stores unposted content for agency review. Drafts have no
// external id; a redelivered source message gets ErrDuplicateDraft.
func (r *Recorder) RecordDraft(ctx context.Context, in DraftInput) (*Post, error) {
	post := &Post{
		ID:             r.node.Generate().String(),
		OrganizationID: in.OrganizationID,
		CampaignID:     in.Assignment.CampaignID,
		AssignmentID:   in.Assignment.ID,
		KOLID:          in.KOL.ID,
		Type:           PostTypePost,
		Status:         PostStatusDraft,
		Content:        in.Content,
		SourceChatID:   in.SourceChatID,
		SubmittedBy:    in.SubmittedBy,
	}
	if in.SourceMessageID != 0 {
		id := in.SourceMessageID
		post.SourceMessageID = &id
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if db.IsUniqueViolation(err) {
			recordedTotal.WithLabelValues(string(PostStatusDraft), "duplicate").Inc()
			return nil, ErrDuplicateDraft
		}
		recordedTotal.WithLabelValues(string(PostStatusDraft), "error").Inc()
		return nil, fmt.Errorf("create draft: %w", err)
	}
	recordedTotal.WithLabelValues(string(PostStatusDraft), "created").Inc()
	return post, nil
}

// Exists reports whether the organization already has a deliverable for the
// external content id.
func (r *Recorder) Exists(ctx context.Context, organizationID, externalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Post{}).
		Where("organization_id = ? AND external_id = ?", organizationID, externalID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check deliverable: %w", err)
	}
	return count > 0, nil
}

type PostedInput struct {
	OrganizationID string
	BotToken       string
	Assignment     *campaign.Assignment
	KOL            *kol.KOL
	ExternalID     string
	URL            string
	SourceChatID   string
	SourceTitle    string
	SubmittedBy    string
}

type PostedResult struct {
	Post *Post
	// Notification is nil when the campaign has no notification chat.
	Notification *notify.Outcome
}

// RecordPosted records an already published post. The same external id is
// accepted once per organization; later attempts get ErrAlreadySubmitted
// without a write, and attempts overlapping one still holding the lock get
// ErrSubmissionInProgress.
func (r *Recorder) RecordPosted(ctx context.Context, in PostedInput) (*PostedResult, error) {
	zapLog := zap.L().With(
		zap.String("organization_id", in.OrganizationID),
		zap.String("external_id", in.ExternalID),
	)

	exists, err := r.Exists(ctx, in.OrganizationID, in.ExternalID)
	if err != nil {
		return nil, err
	}
	if exists {
		recordedTotal.WithLabelValues(string(PostStatusPosted), "duplicate").Inc()
		return nil, ErrAlreadySubmitted
	}

	release, acquired := r.guard.Acquire(ctx, in.OrganizationID, in.ExternalID)
	if !acquired {
		recordedTotal.WithLabelValues(string(PostStatusPosted), "in_progress").Inc()
		return nil, ErrSubmissionInProgress
	}
	defer release()

	fetched, err := r.fetcher.FetchPost(ctx, in.URL)
	if err != nil {
		zapLog.Warn("post fetch failed", zap.String("url", in.URL), zap.Error(err))
		recordedTotal.WithLabelValues(string(PostStatusPosted), "fetch_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if fetched == nil {
		recordedTotal.WithLabelValues(string(PostStatusPosted), "fetch_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, postfetch.ErrEmptyResult)
	}

	post := r.postedFrom(in, fetched)
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if db.IsUniqueViolation(err) {
			zapLog.Info("concurrent submission lost the race")
			recordedTotal.WithLabelValues(string(PostStatusPosted), "duplicate").Inc()
			return nil, ErrAlreadySubmitted
		}
		recordedTotal.WithLabelValues(string(PostStatusPosted), "error").Inc()
		return nil, fmt.Errorf("create deliverable: %w", err)
	}
	recordedTotal.WithLabelValues(string(PostStatusPosted), "created").Inc()

	result := &PostedResult{Post: post}

	c := &in.Assignment.Campaign
	if c.HasNotificationChat() {
		out := r.sender.Send(ctx, in.BotToken, *c.NotificationChatID, FormatNotification(c, in.KOL, post, in.SourceTitle),
			telegram.WithParseMode("HTML"),
			telegram.WithoutPreview(),
		)
		if !out.Delivered() {
			zapLog.Warn("campaign notification not delivered",
				zap.String("campaign_id", c.ID),
				zap.String("outcome", string(out.Kind)),
				zap.String("reason", out.Reason),
			)
		}
		result.Notification = &out
	}

	r.enqueueRecorded(ctx, post)

	return result, nil
}

func (r *Recorder) postedFrom(in PostedInput, fetched *postfetch.Post) *Post {
	externalID := in.ExternalID
	url := in.URL
	if fetched.URL != "" {
		url = fetched.URL
	}

	post := &Post{
		ID:             r.node.Generate().String(),
		OrganizationID: in.OrganizationID,
		ExternalID:     &externalID,
		CampaignID:     in.Assignment.CampaignID,
		AssignmentID:   in.Assignment.ID,
		KOLID:          in.KOL.ID,
		Type:           PostTypePost,
		Status:         PostStatusPosted,
		URL:            &url,
		Content:        fetched.Content,
		Impressions:    fetched.Metrics.Views,
		Likes:          fetched.Metrics.Likes,
		Retweets:       fetched.Metrics.Retweets,
		Replies:        fetched.Metrics.Replies,
		Quotes:         fetched.Metrics.Quotes,
		SourceChatID:   in.SourceChatID,
		SubmittedBy:    in.SubmittedBy,
	}
	if !fetched.PostedAt.IsZero() {
		postedAt := fetched.PostedAt
		post.PostedAt = &postedAt
	}
	if raw, err := json.Marshal(fetched); err == nil {
		post.FetchPayload = datatypes.JSON(raw)
	}
	return post
}

func (r *Recorder) enqueueRecorded(ctx context.Context, post *Post) {
	zapLog := zap.L().With(
		zap.String("organization_id", post.OrganizationID),
		zap.String("post_id", post.ID),
	)

	t, err := NewRecordedTask(RecordedPayload{
		PostID:         post.ID,
		OrganizationID: post.OrganizationID,
		CampaignID:     post.CampaignID,
		ExternalID:     *post.ExternalID,
		URL:            *post.URL,
	}, r.queue)
	if err != nil {
		zapLog.Error("failed to build deliverable task", zap.Error(err))
		return
	}

	if _, err := r.enqueuer.Enqueue(ctx, t); err != nil {
		zapLog.Warn("failed to enqueue deliverable task", zap.Error(err))
	}
}

// FormatNotification renders the campaign-chat announcement as Bot API HTML.
func FormatNotification(c *campaign.Campaign, k *kol.KOL, post *Post, sourceTitle string) string {
	var b strings.Builder
	b.WriteString("<b>New deliverable submitted</b>\n")
	fmt.Fprintf(&b, "Campaign: %s\n", html.EscapeString(c.Name))
	if k.TelegramUsername != "" {
		fmt.Fprintf(&b, "KOL: %s (@%s)\n", html.EscapeString(k.Name), html.EscapeString(kol.NormalizeUsername(k.TelegramUsername)))
	} else {
		fmt.Fprintf(&b, "KOL: %s\n", html.EscapeString(k.Name))
	}
	if post.URL != nil {
		fmt.Fprintf(&b, "Post: %s\n", html.EscapeString(*post.URL))
	}
	fmt.Fprintf(&b, "Impressions: %d | Likes: %d | Retweets: %d | Replies: %d | Quotes: %d",
		post.Impressions, post.Likes, post.Retweets, post.Replies, post.Quotes)
	if sourceTitle != "" {
		fmt.Fprintf(&b, "\nVia: %s", html.EscapeString(sourceTitle))
	}
	return b.String()
}
