package command

import (
	"strings"
	"unicode"
)

type Kind int

const (
	KindPlainText Kind = iota
	KindHelp
	KindSchedule
	KindBudget
	KindReview
	KindSubmit
)

func (k Kind) String() string {
	switch k {
	case KindHelp:
		return "help"
	case KindSchedule:
		return "schedule"
	case KindBudget:
		return "budget"
	case KindReview:
		return "review"
	case KindSubmit:
		return "submit"
	default:
		return "plain_text"
	}
}

// Command is the parsed form of one inbound message. Only the fields of its
// Kind are populated.
type Command struct {
	Kind Kind
	// Text is the whole message for KindPlainText.
	Text string
	// Draft is the /review content with its line breaks intact.
	Draft string
	// Hint and URL are the /submit arguments. URL is empty when no token
	// contained "status/".
	Hint string
	URL  string
}

var keywords = map[string]Kind{
	"/help":     KindHelp,
	"/start":    KindHelp,
	"/schedule": KindSchedule,
	"/budget":   KindBudget,
	"/review":   KindReview,
	"/submit":   KindSubmit,
}

// Parse classifies text by its first whitespace-delimited token, compared
// case-insensitively after dropping a "@botname" suffix. Anything else is
// plain text.
func Parse(text string) Command {
	return ParseFor(text, "")
}

// ParseFor is Parse for a bot that knows its own username: a command
// addressed to a different bot ("/help@OtherBot") is plain text. An empty
// botUsername accepts every suffix.
func ParseFor(text, botUsername string) Command {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: KindPlainText, Text: text}
	}

	head, rest := trimmed, ""
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		head, rest = trimmed[:i], strings.TrimSpace(trimmed[i:])
	}
	if at := strings.IndexByte(head, '@'); at > 0 {
		addressee := head[at+1:]
		head = head[:at]
		if !addressedTo(addressee, botUsername) {
			return Command{Kind: KindPlainText, Text: text}
		}
	}

	kind, ok := keywords[strings.ToLower(head)]
	if !ok {
		return Command{Kind: KindPlainText, Text: text}
	}

	cmd := Command{Kind: kind}
	switch kind {
	case KindReview:
		cmd.Draft = rest
	case KindSubmit:
		cmd.Hint, cmd.URL = splitSubmitArgs(rest)
	}
	return cmd
}

func addressedTo(addressee, botUsername string) bool {
	bot := strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	return bot == "" || strings.EqualFold(addressee, bot)
}

// splitSubmitArgs takes the first token containing "status/" as the URL and
// joins every token before it into the hint.
func splitSubmitArgs(args string) (hint, url string) {
	tokens := strings.Fields(args)
	for i, tok := range tokens {
		if strings.Contains(tok, "status/") {
			return strings.Join(tokens[:i], " "), tok
		}
	}
	return "", ""
}
