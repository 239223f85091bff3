package command

import (
	"context"
	"errors"
	"time"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/pkg/postfetch"
	"campaignhub-botgateway/pkg/telegram"
	"campaignhub-botgateway/services/campaign"
	"campaignhub-botgateway/services/chat"
	"campaignhub-botgateway/services/deliverable"
	"campaignhub-botgateway/services/kol"
	"campaignhub-botgateway/services/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("command.module",
	fx.Provide(
		NewBudgetAuthorizer,
		NewHandler,
	),
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "botgateway_commands_total",
	Help: "Chat commands handled, by command and result.",
}, []string{"command", "result"})

// Request is one parsed command together with the context it arrived in.
type Request struct {
	OrganizationID string
	BotToken       string
	PlatformChatID string
	// ChatID is the stored chat record of the invoking chat.
	ChatID         string
	ChatType       chat.ChatType
	ChatTitle      string
	Username       string
	PlatformUserID string
	MessageID      int64
	Command        Command
}

func (r Request) target() notify.Target {
	return notify.Target{
		OrganizationID: r.OrganizationID,
		BotToken:       r.BotToken,
		PlatformChatID: r.PlatformChatID,
		ChatID:         r.ChatID,
		ReplyTo:        r.MessageID,
	}
}

type Handler struct {
	replier     *notify.Replier
	kols        *kol.Service
	campaigns   *campaign.Service
	matcher     campaign.ChatMatcher
	recorder    *deliverable.Recorder
	authorizer  BudgetAuthorizer
	scheduleURL string
	now         func() time.Time
}

type HandlerParams struct {
	fx.In
	Config     *config.Config
	Replier    *notify.Replier
	KOLs       *kol.Service
	Campaigns  *campaign.Service
	Matcher    campaign.ChatMatcher
	Recorder   *deliverable.Recorder
	Authorizer BudgetAuthorizer
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		replier:     p.Replier,
		kols:        p.KOLs,
		campaigns:   p.Campaigns,
		matcher:     p.Matcher,
		recorder:    p.Recorder,
		authorizer:  p.Authorizer,
		scheduleURL: p.Config.Commands.ScheduleURL,
		now:         time.Now,
	}
}

// Handle runs the command and replies in the invoking chat. It returns false
// when the message is to be treated as conversation instead. Failures are
// logged and answered, never returned.
func (h *Handler) Handle(ctx context.Context, req Request) bool {
	var result string
	switch req.Command.Kind {
	case KindPlainText:
		return false
	case KindHelp:
		result = h.reply(ctx, req, helpText)
	case KindSchedule:
		result = h.handleSchedule(ctx, req)
	case KindBudget:
		if !h.authorizer.CanViewBudget(req.OrganizationID, req.Username) {
			return false
		}
		result = h.handleBudget(ctx, req)
	case KindReview:
		result = h.handleReview(ctx, req)
	case KindSubmit:
		result = h.handleSubmit(ctx, req)
	}

	commandsTotal.WithLabelValues(req.Command.Kind.String(), result).Inc()
	return true
}

func (h *Handler) logger(req Request) *zap.Logger {
	return zap.L().With(
		zap.String("organization_id", req.OrganizationID),
		zap.String("chat_id", req.PlatformChatID),
		zap.String("command", req.Command.Kind.String()),
	)
}

// reply sends text and returns the metric result label. A failed reply is
// already logged by the replier.
func (h *Handler) reply(ctx context.Context, req Request, text string, opts ...telegram.SendOption) string {
	if out := h.replier.Reply(ctx, req.target(), text, opts...); !out.Delivered() {
		return "reply_failed"
	}
	return "ok"
}

func (h *Handler) fail(ctx context.Context, req Request, msg string, err error) string {
	h.logger(req).Error(msg, zap.Error(err))
	h.reply(ctx, req, internalErrorText)
	return "error"
}

func (h *Handler) handleSchedule(ctx context.Context, req Request) string {
	if h.scheduleURL == "" {
		return h.reply(ctx, req, scheduleMissingText)
	}
	return h.reply(ctx, req, scheduleText(h.scheduleURL))
}

func (h *Handler) handleBudget(ctx context.Context, req Request) string {
	if !req.ChatType.IsGroup() {
		return h.reply(ctx, req, budgetPrivateText)
	}

	c, err := h.matcher.MatchChat(ctx, req.OrganizationID, req.ChatTitle)
	if err != nil {
		return h.fail(ctx, req, "failed to match campaign for chat", err)
	}
	if c == nil {
		h.reply(ctx, req, budgetNoMatchText)
		return "no_match"
	}

	summary, err := h.campaigns.Budget(ctx, c, h.now())
	if err != nil {
		return h.fail(ctx, req, "failed to compute budget", err)
	}
	return h.reply(ctx, req, budgetText(c, summary))
}

func (h *Handler) handleReview(ctx context.Context, req Request) string {
	if req.Command.Draft == "" {
		h.reply(ctx, req, reviewUsageText)
		return "usage"
	}
	username := kol.NormalizeUsername(req.Username)
	if username == "" {
		h.reply(ctx, req, noUsernameText)
		return "no_identity"
	}

	k, err := h.kols.Resolve(ctx, req.OrganizationID, username)
	if err != nil {
		return h.fail(ctx, req, "failed to resolve kol", err)
	}
	if k == nil {
		h.reply(ctx, req, unknownKOLText(username))
		return "no_identity"
	}

	assignments, err := h.campaigns.ActiveAssignments(ctx, req.OrganizationID, k.ID,
		campaign.CampaignStatusActive, campaign.CampaignStatusPendingApproval)
	if err != nil {
		return h.fail(ctx, req, "failed to list assignments", err)
	}
	if len(assignments) == 0 {
		h.reply(ctx, req, noActiveReviewText)
		return "no_active"
	}
	a := &assignments[0]

	h.linkAndPin(ctx, req, k)

	_, err = h.recorder.RecordDraft(ctx, deliverable.DraftInput{
		OrganizationID:  req.OrganizationID,
		Assignment:      a,
		KOL:             k,
		Content:         req.Command.Draft,
		SourceChatID:    req.PlatformChatID,
		SourceMessageID: req.MessageID,
		SubmittedBy:     username,
	})
	switch {
	case errors.Is(err, deliverable.ErrDuplicateDraft):
		// Redelivery of a message already answered.
		return "duplicate"
	case err != nil:
		return h.fail(ctx, req, "failed to record draft", err)
	}

	return h.reply(ctx, req, reviewReceivedText(a.Campaign.Name, k.Name))
}

func (h *Handler) handleSubmit(ctx context.Context, req Request) string {
	zapLog := h.logger(req)

	externalID, ok := postfetch.ExtractPostID(req.Command.URL)
	if req.Command.URL == "" || !ok {
		h.reply(ctx, req, submitUsageText)
		return "usage"
	}

	k, err := h.resolveSender(ctx, req)
	if err != nil {
		return h.fail(ctx, req, "failed to resolve kol", err)
	}
	if k == nil {
		h.reply(ctx, req, unknownKOLText(kol.NormalizeUsername(req.Username)))
		return "no_identity"
	}

	assignments, err := h.campaigns.ActiveAssignments(ctx, req.OrganizationID, k.ID)
	if err != nil {
		return h.fail(ctx, req, "failed to list assignments", err)
	}

	res := campaign.Disambiguate(assignments, req.Command.Hint)
	switch res.Kind {
	case campaign.ResolutionNoActive:
		h.reply(ctx, req, noActiveSubmitText)
		return "no_active"
	case campaign.ResolutionNoMatch:
		h.reply(ctx, req, noMatchText(req.Command.Hint, res.Candidates))
		return "no_match"
	case campaign.ResolutionAmbiguous:
		h.reply(ctx, req, ambiguousText(res.Candidates))
		return "ambiguous"
	}
	a := res.Assignment

	if req.ChatID != "" {
		if err := h.kols.Link(ctx, req.ChatID, k.ID, kol.MatchedByCommand, req.PlatformUserID); err != nil {
			zapLog.Warn("failed to link kol to chat", zap.Error(err))
		}
	}

	recorded, err := h.recorder.RecordPosted(ctx, deliverable.PostedInput{
		OrganizationID: req.OrganizationID,
		BotToken:       req.BotToken,
		Assignment:     a,
		KOL:            k,
		ExternalID:     externalID,
		URL:            req.Command.URL,
		SourceChatID:   req.PlatformChatID,
		SourceTitle:    req.ChatTitle,
		SubmittedBy:    kol.NormalizeUsername(req.Username),
	})
	switch {
	case errors.Is(err, deliverable.ErrAlreadySubmitted):
		h.reply(ctx, req, alreadySubmitText)
		return "duplicate"
	case errors.Is(err, deliverable.ErrSubmissionInProgress):
		h.reply(ctx, req, inProgressText)
		return "in_progress"
	case errors.Is(err, deliverable.ErrFetchFailed):
		h.reply(ctx, req, fetchFailedText)
		return "fetch_failed"
	case err != nil:
		return h.fail(ctx, req, "failed to record deliverable", err)
	}

	if req.ChatType.IsGroup() {
		if err := h.kols.PinHomeChat(ctx, k.ID, req.PlatformChatID); err != nil {
			zapLog.Warn("failed to pin home chat", zap.Error(err))
		}
	}

	zapLog.Info("deliverable recorded",
		zap.String("post_id", recorded.Post.ID),
		zap.String("campaign_id", a.CampaignID),
		zap.String("kol_id", k.ID),
	)

	return h.reply(ctx, req, submittedText(&a.Campaign, recorded), telegram.WithoutPreview())
}

// resolveSender tries the username, then any chat link carrying the sender's
// platform id.
func (h *Handler) resolveSender(ctx context.Context, req Request) (*kol.KOL, error) {
	if username := kol.NormalizeUsername(req.Username); username != "" {
		k, err := h.kols.Resolve(ctx, req.OrganizationID, username)
		if err != nil || k != nil {
			return k, err
		}
	}
	if req.PlatformUserID == "" {
		return nil, nil
	}
	return h.kols.ResolveByPlatformUserID(ctx, req.OrganizationID, req.PlatformUserID)
}

func (h *Handler) linkAndPin(ctx context.Context, req Request, k *kol.KOL) {
	zapLog := h.logger(req)
	if req.ChatID != "" {
		if err := h.kols.Link(ctx, req.ChatID, k.ID, kol.MatchedByCommand, req.PlatformUserID); err != nil {
			zapLog.Warn("failed to link kol to chat", zap.Error(err))
		}
	}
	if err := h.kols.PinHomeChat(ctx, k.ID, req.PlatformChatID); err != nil {
		zapLog.Warn("failed to pin home chat", zap.Error(err))
	}
}
