package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/pkg/errutil"
	"campaignhub-botgateway/pkg/telegram"
	"campaignhub-botgateway/services/chat"
	"campaignhub-botgateway/services/command"
	"campaignhub-botgateway/services/kol"
	"campaignhub-botgateway/services/organization"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

var Module = fx.Module("webhook.module",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

var updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "botgateway_updates_total",
	Help: "Webhook updates processed, by kind and result.",
}, []string{"kind", "result"})

// CommandRouter runs chat commands; false means the text is conversation.
type CommandRouter interface {
	Handle(ctx context.Context, req command.Request) bool
}

type Handler struct {
	orgs     *organization.Service
	chats    *chat.Service
	kols     *kol.Service
	commands CommandRouter
	tracer   trace.Tracer
}

type HandlerParams struct {
	fx.In
	Organizations *organization.Service
	Chats         *chat.Service
	KOLs          *kol.Service
	Commands      *command.Handler
}

func NewHandler(p HandlerParams) *Handler {
	return newHandler(p.Organizations, p.Chats, p.KOLs, p.Commands)
}

func newHandler(orgs *organization.Service, chats *chat.Service, kols *kol.Service, commands CommandRouter) *Handler {
	return &Handler{
		orgs:     orgs,
		chats:    chats,
		kols:     kols,
		commands: commands,
		tracer:   otel.Tracer("campaignhub-botgateway/services/webhook"),
	}
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, h *Handler) {
	path := cfg.Telegram.WebhookPath
	if path == "" {
		path = "/webhook/telegram"
	}
	r.POST(path, h.Receive)
}

// Receive authenticates the update against the organization's webhook secret
// and processes it. Everything past authentication is acknowledged with 200 so
// the platform never redelivers because of our own failures.
func (h *Handler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	org, err := h.orgs.FindByWebhookSecret(ctx, c.GetHeader(SecretHeader))
	if err != nil {
		zap.L().Error("organization lookup failed, dropping update", zap.Error(err))
		updatesTotal.WithLabelValues(string(UpdateIgnored), "error").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if org == nil {
		updatesTotal.WithLabelValues(string(UpdateIgnored), "unauthorized").Inc()
		_ = c.Error(errutil.Unauthorized("invalid webhook secret", nil))
		c.Abort()
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		zap.L().Warn("failed to read update body", zap.String("organization_id", org.ID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	var update telegram.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		zap.L().Warn("malformed update", zap.String("organization_id", org.ID), zap.Error(err))
		updatesTotal.WithLabelValues(string(UpdateIgnored), "malformed").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	h.Process(ctx, org, &update, raw)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Process handles one authenticated update. It never fails and never panics.
func (h *Handler) Process(ctx context.Context, org *organization.Organization, update *telegram.Update, raw []byte) {
	kind := Classify(update)

	ctx, span := h.tracer.Start(ctx, "webhook.update", trace.WithAttributes(
		attribute.String("organization.id", org.ID),
		attribute.Int64("update.id", update.UpdateID),
		attribute.String("update.kind", string(kind)),
	))
	defer span.End()

	zapLog := zap.L().With(
		zap.String("organization_id", org.ID),
		zap.Int64("update_id", update.UpdateID),
	)
	if sc := span.SpanContext(); sc.IsValid() {
		zapLog = zapLog.With(zap.String("trace_id", sc.TraceID().String()), zap.String("span_id", sc.SpanID().String()))
	}

	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			zapLog.Error("update processing panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			span.SetStatus(codes.Error, fmt.Sprint(r))
		}
		updatesTotal.WithLabelValues(string(kind), result).Inc()
	}()

	var err error
	switch kind {
	case UpdateMembership:
		err = h.handleMembership(ctx, org, update.MyChatMember)
	case UpdateMessage:
		err = h.handleMessage(ctx, org, update.Message, raw)
	default:
		result = "ignored"
		zapLog.Debug("ignoring update without a supported payload")
	}

	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zapLog.Error("update processing failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (h *Handler) handleMembership(ctx context.Context, org *organization.Organization, m *telegram.ChatMemberUpdated) error {
	ref, ok := chat.RefFromTelegram(m.Chat)
	if !ok {
		return nil
	}

	_, err := h.chats.ApplyMembership(ctx, org.ID, ref, m.NewChatMember.Status)
	if errors.Is(err, chat.ErrUnsupportedMemberStatus) {
		zap.L().Debug("membership status does not change the chat lifecycle",
			zap.String("organization_id", org.ID),
			zap.String("chat_id", ref.PlatformChatID),
			zap.String("status", m.NewChatMember.Status),
		)
		return nil
	}
	return err
}

func (h *Handler) handleMessage(ctx context.Context, org *organization.Organization, msg *telegram.Message, raw []byte) error {
	ref, ok := chat.RefFromTelegram(msg.Chat)
	if !ok || !(ref.Type == chat.ChatTypePrivate || ref.Type.IsGroup()) {
		return nil
	}

	rec, err := h.chats.Ensure(ctx, org.ID, ref)
	if err != nil {
		return err
	}

	body := msg.Body()
	if body == "" {
		return nil
	}

	req := command.Request{
		OrganizationID: org.ID,
		BotToken:       org.BotToken,
		PlatformChatID: ref.PlatformChatID,
		ChatID:         rec.ID,
		ChatType:       ref.Type,
		ChatTitle:      ref.Title,
		Username:       usernameOf(msg.From),
		PlatformUserID: msg.From.PlatformID(),
		MessageID:      msg.MessageID,
		Command:        command.ParseFor(body, org.BotUsername),
	}
	if h.commands.Handle(ctx, req) {
		return nil
	}

	zapLog := zap.L().With(
		zap.String("organization_id", org.ID),
		zap.String("chat_id", ref.PlatformChatID),
	)
	zapLog.Debug("plain text message", zap.String("chat_type", string(ref.Type)))

	k := h.resolveByUsername(ctx, zapLog, org.ID, req.Username)

	if ref.Type == chat.ChatTypePrivate && k == nil {
		return nil
	}

	entry := inboundEntry(org.ID, rec.ID, msg, body, raw)
	if k != nil {
		entry.KOLID = &k.ID
	}
	if err := h.chats.AppendLog(ctx, entry); err != nil {
		return err
	}

	if k != nil {
		if err := h.kols.Link(ctx, rec.ID, k.ID, kol.MatchedByUsername, req.PlatformUserID); err != nil {
			zapLog.Warn("failed to link kol to chat", zap.String("kol_id", k.ID), zap.Error(err))
		}
	}
	return nil
}

// resolveByUsername is best effort; lookup failures are logged and treated
// as no match.
func (h *Handler) resolveByUsername(ctx context.Context, zapLog *zap.Logger, organizationID, username string) *kol.KOL {
	if username == "" {
		return nil
	}
	k, err := h.kols.Resolve(ctx, organizationID, username)
	if err != nil {
		zapLog.Warn("kol resolution failed", zap.Error(err))
		return nil
	}
	return k
}

func usernameOf(u *telegram.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}

func inboundEntry(organizationID, chatID string, msg *telegram.Message, body string, raw []byte) *chat.MessageLog {
	entry := &chat.MessageLog{
		OrganizationID:    organizationID,
		ChatID:            chatID,
		Direction:         chat.DirectionInbound,
		PlatformMessageID: msg.MessageID,
		SenderPlatformID:  msg.From.PlatformID(),
		SenderUsername:    usernameOf(msg.From),
		SenderName:        msg.From.DisplayName(),
		Text:              body,
	}
	if msg.ReplyToMessage != nil {
		replyTo := msg.ReplyToMessage.MessageID
		entry.ReplyToMessageID = &replyTo
	}
	if msg.Date > 0 {
		entry.SentAt = time.Unix(msg.Date, 0).UTC()
	}
	if json.Valid(raw) {
		entry.Raw = datatypes.JSON(raw)
	}
	return entry
}
