package command

import (
	"fmt"
	"strings"

	"campaignhub-botgateway/services/campaign"
	"campaignhub-botgateway/services/deliverable"
	"campaignhub-botgateway/services/notify"
)

const (
	helpText = "Available commands:\n" +
		"/submit [campaign name] <post URL> - record a published post\n" +
		"/review <draft text> - send a draft to the agency for review\n" +
		"/schedule - book a call with the agency team\n" +
		"/help - show this message"

	scheduleMissingText = "The scheduling link is not configured yet. Please contact your account manager."

	reviewUsageText = "Usage: /review <draft text>"
	submitUsageText = "Usage: /submit [campaign name] <post URL>\nExample: /submit https://x.com/yourname/status/1234567890"

	noUsernameText     = "Please set a username in your profile so we can identify you, then try again."
	noActiveReviewText = "You have no active campaign right now, so there is nothing to review against."
	noActiveSubmitText = "You have no active campaign to submit a post for."
	alreadySubmitText  = "This post was already submitted."
	inProgressText     = "A submission for this post is already in progress. You will get a reply once it finishes."
	fetchFailedText    = "Could not fetch the post. Please check the URL and try again."
	internalErrorText  = "Something went wrong on our side. Please try again in a moment."
	budgetPrivateText  = "Please use /budget inside a campaign group."
	budgetNoMatchText  = "No campaign could be matched to this chat."
)

func scheduleText(url string) string {
	return "Book a slot with the agency team: " + url
}

func unknownKOLText(username string) string {
	if username == "" {
		return "We couldn't find your KOL profile. Please contact your account manager."
	}
	return fmt.Sprintf("We couldn't find a KOL profile for @%s. Please contact your account manager.", username)
}

func reviewReceivedText(campaignName, kolName string) string {
	return fmt.Sprintf("Draft received for review.\nCampaign: %s\nKOL: %s", campaignName, kolName)
}

func bulletList(names []string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString("\n- ")
		b.WriteString(n)
	}
	return b.String()
}

func noMatchText(hint string, candidates []string) string {
	return fmt.Sprintf("No active campaign matches %q. Your active campaigns:%s\n\nUsage: /submit <campaign name> <post URL>",
		hint, bulletList(candidates))
}

func ambiguousText(candidates []string) string {
	return fmt.Sprintf("You have several active campaigns:%s\n\nPlease name the campaign, for example:\n/submit %s <post URL>",
		bulletList(candidates), candidates[0])
}

func submittedText(c *campaign.Campaign, res *deliverable.PostedResult) string {
	p := res.Post

	var b strings.Builder
	fmt.Fprintf(&b, "Deliverable recorded for %s.\n", c.Name)
	if p.URL != nil {
		fmt.Fprintf(&b, "Post: %s\n", *p.URL)
	}
	fmt.Fprintf(&b, "Impressions: %d | Likes: %d | Retweets: %d | Replies: %d | Quotes: %d",
		p.Impressions, p.Likes, p.Retweets, p.Replies, p.Quotes)

	if out := res.Notification; out != nil {
		if out.Delivered() {
			b.WriteString("\nThe campaign team has been notified.")
		} else {
			fmt.Fprintf(&b, "\nNote: the campaign team could not be notified (%s).", notificationReason(*out))
		}
	}
	return b.String()
}

func notificationReason(out notify.Outcome) string {
	if out.Reason != "" {
		return out.Reason
	}
	return string(out.Kind)
}

func budgetText(c *campaign.Campaign, s *campaign.BudgetSummary) string {
	return fmt.Sprintf("Budget for %s\nTotal: %.2f\nAllocated: %.2f\nRemaining: %.2f\nKOLs assigned: %d\nDays active: %d",
		c.Name, s.Total, s.Allocated, s.Remaining, s.KOLCount, s.DaysActive)
}
