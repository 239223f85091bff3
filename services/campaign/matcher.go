package campaign

import (
	"context"
	"strings"
	"unicode/utf8"
)

// ChatMatcher finds the campaign a group chat belongs to.
type ChatMatcher interface {
	MatchChat(ctx context.Context, organizationID, chatTitle string) (*Campaign, error)
}

// TitleMatcher infers the campaign from the group title. Groups are
// conventionally named "<Org> x <Campaign>", so the configured organization
// prefixes are stripped first.
type TitleMatcher struct {
	campaigns *Service
	prefixes  []string
}

func NewTitleMatcher(campaigns *Service, prefixes TitlePrefixes) *TitleMatcher {
	return &TitleMatcher{campaigns: campaigns, prefixes: prefixes}
}

// MatchChat tries the organization's active campaigns whose name contains the
// stripped title, then any whose name appears anywhere in the full title.
// The oldest campaign wins within each pass. No match returns nil.
func (m *TitleMatcher) MatchChat(ctx context.Context, organizationID, chatTitle string) (*Campaign, error) {
	active, err := m.campaigns.ListActive(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	derived := strings.ToLower(StripTitlePrefix(chatTitle, m.prefixes))
	if derived != "" {
		for i := range active {
			if strings.Contains(strings.ToLower(active[i].Name), derived) {
				return &active[i], nil
			}
		}
	}

	title := strings.ToLower(chatTitle)
	for i := range active {
		name := strings.ToLower(strings.TrimSpace(active[i].Name))
		if name != "" && strings.Contains(title, name) {
			return &active[i], nil
		}
	}

	return nil, nil
}

var titleSeparators = []string{"x ", "× ", "| ", "- ", ": ", "/ "}

// StripTitlePrefix removes the first matching prefix (case-insensitive) and
// the separator that follows it.
func StripTitlePrefix(title string, prefixes []string) string {
	t := strings.TrimSpace(title)

	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rest, ok := cutFoldPrefix(t, p)
		if !ok {
			continue
		}

		rest = strings.TrimSpace(rest)
		for _, sep := range titleSeparators {
			if after, ok := cutFoldPrefix(rest, sep); ok {
				rest = strings.TrimSpace(after)
				break
			}
		}
		return rest
	}

	return t
}

// cutFoldPrefix walks s and prefix rune by rune under case folding, so the
// cut lands on s's own boundaries even when case mapping changes byte widths.
func cutFoldPrefix(s, prefix string) (string, bool) {
	for prefix != "" {
		if s == "" {
			return "", false
		}
		pr, pn := utf8.DecodeRuneInString(prefix)
		sr, sn := utf8.DecodeRuneInString(s)
		if pr != sr && !strings.EqualFold(string(pr), string(sr)) {
			return "", false
		}
		prefix, s = prefix[pn:], s[sn:]
	}
	return s, true
}
