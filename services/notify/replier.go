package notify

import (
	"context"

	"campaignhub-botgateway/pkg/telegram"
	"campaignhub-botgateway/services/chat"

	"go.uber.org/zap"
)

// Target is the chat a command reply goes back to.
type Target struct {
	OrganizationID string
	BotToken       string
	PlatformChatID string
	// ChatID is the stored chat record; empty skips the outbound log entry.
	ChatID  string
	ReplyTo int64
}

type LogAppender interface {
	AppendLog(ctx context.Context, entry *chat.MessageLog) error
}

// Replier answers in the invoking chat. Failures are logged and reported in
// the returned Outcome, never raised.
type Replier struct {
	sender Sender
	logs   LogAppender
}

func NewReplier(sender Sender, logs *chat.Service) *Replier {
	return &Replier{sender: sender, logs: logs}
}

func (r *Replier) Reply(ctx context.Context, to Target, text string, opts ...telegram.SendOption) Outcome {
	if to.ReplyTo != 0 {
		opts = append(opts, telegram.WithReplyTo(to.ReplyTo))
	}

	out := r.sender.Send(ctx, to.BotToken, to.PlatformChatID, text, opts...)

	zapLog := zap.L().With(
		zap.String("organization_id", to.OrganizationID),
		zap.String("chat_id", to.PlatformChatID),
	)

	if !out.Delivered() {
		zapLog.Warn("reply not delivered",
			zap.String("outcome", string(out.Kind)),
			zap.String("reason", out.Reason),
		)
		return out
	}

	if to.ChatID != "" && r.logs != nil {
		entry := &chat.MessageLog{
			OrganizationID:    to.OrganizationID,
			ChatID:            to.ChatID,
			Direction:         chat.DirectionOutbound,
			PlatformMessageID: out.MessageID,
			Text:              text,
		}
		if to.ReplyTo != 0 {
			replyTo := to.ReplyTo
			entry.ReplyToMessageID = &replyTo
		}
		if err := r.logs.AppendLog(ctx, entry); err != nil {
			zapLog.Error("failed to log outbound reply", zap.Error(err))
		}
	}

	return out
}
