package webhook

import "campaignhub-botgateway/pkg/telegram"

type UpdateKind string

const (
	UpdateMembership UpdateKind = "membership"
	UpdateMessage    UpdateKind = "message"
	UpdateIgnored    UpdateKind = "ignored"
)

// Classify branches on the update's shape. Membership changes win when both
// payloads are present.
func Classify(u *telegram.Update) UpdateKind {
	switch {
	case u == nil:
		return UpdateIgnored
	case u.MyChatMember != nil:
		return UpdateMembership
	case u.Message != nil:
		return UpdateMessage
	default:
		return UpdateIgnored
	}
}
