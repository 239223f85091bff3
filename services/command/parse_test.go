package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		{name: "help", text: "/help", want: Command{Kind: KindHelp}},
		{name: "start", text: "/start", want: Command{Kind: KindHelp}},
		{name: "case insensitive", text: "/HeLp", want: Command{Kind: KindHelp}},
		{name: "bot suffix", text: "/schedule@acme_bot", want: Command{Kind: KindSchedule}},
		{name: "budget with args", text: "/budget now please", want: Command{Kind: KindBudget}},
		{name: "leading space", text: "  /budget", want: Command{Kind: KindBudget}},
		{
			name: "review keeps line breaks",
			text: "/review first line\nsecond line ",
			want: Command{Kind: KindReview, Draft: "first line\nsecond line"},
		},
		{name: "review empty", text: "/review   ", want: Command{Kind: KindReview}},
		{
			name: "submit url only",
			text: "/submit https://platform/alice_x/status/42",
			want: Command{Kind: KindSubmit, URL: "https://platform/alice_x/status/42"},
		},
		{
			name: "submit with hint",
			text: "/submit Summer   Launch https://x.com/a/status/7 trailing",
			want: Command{Kind: KindSubmit, Hint: "Summer Launch", URL: "https://x.com/a/status/7"},
		},
		{name: "submit without url", text: "/submit Summer Launch", want: Command{Kind: KindSubmit}},
		{name: "unknown command", text: "/weather", want: Command{Kind: KindPlainText, Text: "/weather"}},
		{name: "keyword prefix is not enough", text: "/submitx https://x.com/a/status/7", want: Command{Kind: KindPlainText, Text: "/submitx https://x.com/a/status/7"}},
		{name: "plain", text: "gm everyone", want: Command{Kind: KindPlainText, Text: "gm everyone"}},
		{name: "keyword mid sentence", text: "try /help", want: Command{Kind: KindPlainText, Text: "try /help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestParseForAddressedCommands(t *testing.T) {
	tests := []struct {
		name string
		text string
		bot  string
		want Kind
	}{
		{name: "own bot", text: "/help@acme_bot", bot: "acme_bot", want: KindHelp},
		{name: "own bot any case", text: "/budget@Acme_Bot", bot: "@acme_bot", want: KindBudget},
		{name: "other bot", text: "/help@SomeOtherBot", bot: "acme_bot", want: KindPlainText},
		{name: "empty addressee", text: "/help@", bot: "acme_bot", want: KindPlainText},
		{name: "unaddressed", text: "/help", bot: "acme_bot", want: KindHelp},
		{name: "unknown own username", text: "/help@SomeOtherBot", bot: "", want: KindHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFor(tt.text, tt.bot)
			require.Equal(t, tt.want, got.Kind)
			if tt.want == KindPlainText {
				require.Equal(t, tt.text, got.Text)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "submit", KindSubmit.String())
	require.Equal(t, "plain_text", KindPlainText.String())
}
