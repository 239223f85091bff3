package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/pkg/middleware"
	"campaignhub-botgateway/pkg/telegram"
	"campaignhub-botgateway/services/chat"
	"campaignhub-botgateway/services/command"
	"campaignhub-botgateway/services/kol"
	"campaignhub-botgateway/services/organization"
	"campaignhub-botgateway/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type fakeRouter struct {
	mu       sync.Mutex
	requests []command.Request
	handle   func(req command.Request) bool
}

func (f *fakeRouter) Handle(_ context.Context, req command.Request) bool {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.handle == nil {
		return req.Command.Kind != command.KindPlainText
	}
	return f.handle(req)
}

type env struct {
	db     *gorm.DB
	router *fakeRouter
	engine *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()

	gdb := testutil.NewTestDB(t,
		&organization.Organization{},
		&chat.Chat{}, &chat.MessageLog{},
		&kol.KOL{}, &kol.ChatLink{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.NoError(t, gdb.Create(&organization.Organization{
		ID: "org-1", Name: "Acme", Slug: "acme", WebhookSecret: "s3cret", BotToken: "tok",
	}).Error)
	require.NoError(t, gdb.Create(&kol.KOL{
		ID: "kol-1", OrganizationID: "org-1", Name: "Alice", TelegramUsername: "alice_x",
	}).Error)

	e := &env{db: gdb, router: &fakeRouter{}}
	h := newHandler(
		organization.NewService(organization.ServiceParams{DB: gdb}),
		chat.NewService(chat.ServiceParams{DB: gdb, Node: node}),
		kol.NewService(kol.ServiceParams{DB: gdb, Node: node}),
		e.router,
	)

	cfg := &config.Config{}
	cfg.Telegram.WebhookPath = "/webhook/telegram"

	e.engine = gin.New()
	e.engine.Use(middleware.Error())
	RegisterRoutes(e.engine, cfg, h)
	return e
}

func (e *env) post(t *testing.T, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *env) findChat(t *testing.T, platformID string) *chat.Chat {
	t.Helper()
	var c chat.Chat
	err := e.db.Where("organization_id = ? AND platform_chat_id = ?", "org-1", platformID).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	require.NoError(t, err)
	return &c
}

func (e *env) logs(t *testing.T) []chat.MessageLog {
	t.Helper()
	var out []chat.MessageLog
	require.NoError(t, e.db.Order("sent_at ASC").Find(&out).Error)
	return out
}

const (
	groupChat   = `{"id":-100200,"type":"supergroup","title":"Acme x Summer Launch"}`
	privateChat = `{"id":777,"type":"private","username":"alice_x"}`
	aliceUser   = `{"id":777,"username":"alice_x","first_name":"Alice"}`
	bobUser     = `{"id":888,"username":"bob","first_name":"Bob","last_name":"B"}`
)

func membership(status string) string {
	return `{"update_id":1,"my_chat_member":{"chat":` + groupChat + `,"from":` + aliceUser +
		`,"date":1760000000,"old_chat_member":{"status":"left"},"new_chat_member":{"status":"` + status + `"}}}`
}

func message(chatJSON, fromJSON, text string) string {
	return `{"update_id":2,"message":{"message_id":10,"date":1760000000,"chat":` + chatJSON +
		`,"from":` + fromJSON + `,"text":"` + text + `"}}`
}

func TestReceiveRejectsBadSecret(t *testing.T) {
	e := newEnv(t)

	for _, secret := range []string{"", "wrong"} {
		w := e.post(t, secret, membership("member"))
		require.Equal(t, http.StatusUnauthorized, w.Code, secret)
		require.Contains(t, w.Body.String(), "invalid webhook secret")
	}
	require.Nil(t, e.findChat(t, "-100200"))
}

func TestReceiveAcksMalformedPayload(t *testing.T) {
	e := newEnv(t)

	for _, body := range []string{"not json", `{"update_id":3}`, `{"update_id":4,"edited_message":{}}`} {
		w := e.post(t, "s3cret", body)
		require.Equal(t, http.StatusOK, w.Code, body)
		require.JSONEq(t, `{"ok":true}`, w.Body.String())
	}
}

func TestMembershipLifecycle(t *testing.T) {
	e := newEnv(t)

	steps := []struct {
		status string
		want   chat.ChatStatus
	}{
		{status: "member", want: chat.ChatStatusActive},
		{status: "member", want: chat.ChatStatusActive},
		{status: "kicked", want: chat.ChatStatusKicked},
		{status: "administrator", want: chat.ChatStatusActive},
		{status: "left", want: chat.ChatStatusLeft},
		{status: "left", want: chat.ChatStatusLeft},
	}

	var id string
	for _, s := range steps {
		w := e.post(t, "s3cret", membership(s.status))
		require.Equal(t, http.StatusOK, w.Code)

		c := e.findChat(t, "-100200")
		require.NotNil(t, c)
		require.Equal(t, s.want, c.Status, s.status)
		require.Equal(t, chat.ChatTypeSupergroup, c.Type)
		if id == "" {
			id = c.ID
		}
		require.Equal(t, id, c.ID)
	}

	var n int64
	require.NoError(t, e.db.Model(&chat.Chat{}).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestMembershipUnsupportedStatusIsAcked(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "s3cret", membership("restricted"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, e.findChat(t, "-100200"))
}

func TestGroupPlainTextIsLoggedAndLinked(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "s3cret", message(groupChat, aliceUser, "gm frens"))
	require.Equal(t, http.StatusOK, w.Code)

	c := e.findChat(t, "-100200")
	require.NotNil(t, c)

	logs := e.logs(t)
	require.Len(t, logs, 1)
	require.Equal(t, chat.DirectionInbound, logs[0].Direction)
	require.Equal(t, "gm frens", logs[0].Text)
	require.Equal(t, c.ID, logs[0].ChatID)
	require.NotNil(t, logs[0].KOLID)
	require.Equal(t, "kol-1", *logs[0].KOLID)
	require.EqualValues(t, 10, logs[0].PlatformMessageID)
	require.EqualValues(t, 1760000000, logs[0].SentAt.Unix())
	require.NotEmpty(t, logs[0].Raw)

	var link kol.ChatLink
	require.NoError(t, e.db.First(&link, "chat_id = ? AND kol_id = ?", c.ID, "kol-1").Error)
	require.Equal(t, kol.MatchedByUsername, link.MatchedBy)
	require.Equal(t, "777", *link.PlatformUserID)
}

func TestRedeliveredPlainTextIsLoggedOnce(t *testing.T) {
	e := newEnv(t)

	body := message(groupChat, aliceUser, "gm frens")
	require.Equal(t, http.StatusOK, e.post(t, "s3cret", body).Code)
	require.Equal(t, http.StatusOK, e.post(t, "s3cret", body).Code)

	require.Len(t, e.logs(t), 1)

	var links int64
	require.NoError(t, e.db.Model(&kol.ChatLink{}).Count(&links).Error)
	require.EqualValues(t, 1, links)
}

func TestGroupPlainTextFromUnknownSenderIsLogged(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "s3cret", message(groupChat, bobUser, "hello"))
	require.Equal(t, http.StatusOK, w.Code)

	logs := e.logs(t)
	require.Len(t, logs, 1)
	require.Nil(t, logs[0].KOLID)
	require.Equal(t, "Bob B", logs[0].SenderName)

	var links int64
	require.NoError(t, e.db.Model(&kol.ChatLink{}).Count(&links).Error)
	require.Zero(t, links)
}

func TestPrivatePlainText(t *testing.T) {
	t.Run("known kol is linked and logged", func(t *testing.T) {
		e := newEnv(t)

		require.Equal(t, http.StatusOK, e.post(t, "s3cret", message(privateChat, aliceUser, "hi team")).Code)

		c := e.findChat(t, "777")
		require.NotNil(t, c)
		require.Equal(t, chat.ChatTypePrivate, c.Type)
		require.Equal(t, "alice_x", c.Title)

		logs := e.logs(t)
		require.Len(t, logs, 1)
		require.Equal(t, "kol-1", *logs[0].KOLID)
	})

	t.Run("unknown sender is dropped", func(t *testing.T) {
		e := newEnv(t)
		bobChat := `{"id":888,"type":"private","username":"bob"}`

		require.Equal(t, http.StatusOK, e.post(t, "s3cret", message(bobChat, bobUser, "hi")).Code)
		require.NotNil(t, e.findChat(t, "888"))
		require.Empty(t, e.logs(t))
	})
}

func TestCommandsAreRouted(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "s3cret", message(groupChat, aliceUser, "/submit https://platform/alice_x/status/42"))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, e.router.requests, 1)
	req := e.router.requests[0]
	c := e.findChat(t, "-100200")
	require.Equal(t, command.KindSubmit, req.Command.Kind)
	require.Equal(t, "https://platform/alice_x/status/42", req.Command.URL)
	require.Equal(t, "org-1", req.OrganizationID)
	require.Equal(t, "tok", req.BotToken)
	require.Equal(t, "-100200", req.PlatformChatID)
	require.Equal(t, c.ID, req.ChatID)
	require.Equal(t, chat.ChatTypeSupergroup, req.ChatType)
	require.Equal(t, "Acme x Summer Launch", req.ChatTitle)
	require.Equal(t, "alice_x", req.Username)
	require.Equal(t, "777", req.PlatformUserID)
	require.EqualValues(t, 10, req.MessageID)

	require.Empty(t, e.logs(t))
}

func TestCommandForAnotherBotIsPlainText(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Model(&organization.Organization{}).
		Where("id = ?", "org-1").Update("bot_username", "acme_bot").Error)

	require.Equal(t, http.StatusOK, e.post(t, "s3cret", message(groupChat, aliceUser, "/help@SomeOtherBot")).Code)
	require.Len(t, e.router.requests, 1)
	require.Equal(t, command.KindPlainText, e.router.requests[0].Command.Kind)
	require.Len(t, e.logs(t), 1)

	e.router.requests = nil
	w := e.post(t, "s3cret", `{"update_id":3,"message":{"message_id":11,"date":1760000000,"chat":`+groupChat+
		`,"from":`+aliceUser+`,"text":"/help@acme_bot"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, e.router.requests, 1)
	require.Equal(t, command.KindHelp, e.router.requests[0].Command.Kind)
}

func TestUnhandledCommandFallsThroughToConversation(t *testing.T) {
	e := newEnv(t)
	e.router.handle = func(command.Request) bool { return false }

	require.Equal(t, http.StatusOK, e.post(t, "s3cret", message(groupChat, aliceUser, "/budget")).Code)
	require.Len(t, e.logs(t), 1)
}

func TestChannelPostsAreIgnored(t *testing.T) {
	e := newEnv(t)
	channel := `{"id":-100300,"type":"channel","title":"Announcements"}`

	require.Equal(t, http.StatusOK, e.post(t, "s3cret", message(channel, aliceUser, "/help")).Code)
	require.Nil(t, e.findChat(t, "-100300"))
	require.Empty(t, e.router.requests)
}

func TestPanicsAreAcknowledged(t *testing.T) {
	e := newEnv(t)
	e.router.handle = func(command.Request) bool { panic("boom") }

	w := e.post(t, "s3cret", message(groupChat, aliceUser, "/help"))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestClassify(t *testing.T) {
	require.Equal(t, UpdateIgnored, Classify(nil))
	require.Equal(t, UpdateIgnored, Classify(&telegram.Update{UpdateID: 1}))
	require.Equal(t, UpdateMessage, Classify(&telegram.Update{Message: &telegram.Message{}}))
	require.Equal(t, UpdateMembership, Classify(&telegram.Update{
		Message:      &telegram.Message{},
		MyChatMember: &telegram.ChatMemberUpdated{},
	}))
}
