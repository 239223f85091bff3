package kol

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campaignhub-botgateway/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &KOL{}, &ChatLink{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func seedKOL(t *testing.T, svc *Service, k KOL) KOL {
	t.Helper()
	require.NoError(t, svc.db.Create(&k).Error)
	return k
}

func TestResolveCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	seedKOL(t, svc, KOL{ID: "kol-1", OrganizationID: "org-1", Name: "Alice", TelegramUsername: "Alice_X"})

	for _, in := range []string{"alice_x", "@ALICE_X", " Alice_X "} {
		k, err := svc.Resolve(context.Background(), "org-1", in)
		require.NoError(t, err)
		require.NotNil(t, k, in)
		require.Equal(t, "kol-1", k.ID)
	}
}

func TestResolveStoredWithAtSign(t *testing.T) {
	svc := newTestService(t)
	seedKOL(t, svc, KOL{ID: "kol-1", OrganizationID: "org-1", Name: "Alice", TelegramUsername: "@alice_x"})

	k, err := svc.Resolve(context.Background(), "org-1", "alice_x")
	require.NoError(t, err)
	require.NotNil(t, k)
}

func TestResolveIsExactAndTenantScoped(t *testing.T) {
	svc := newTestService(t)
	seedKOL(t, svc, KOL{ID: "kol-1", OrganizationID: "org-1", Name: "Alice", TelegramUsername: "alice_x"})

	k, err := svc.Resolve(context.Background(), "org-1", "alice")
	require.NoError(t, err)
	require.Nil(t, k)

	k, err = svc.Resolve(context.Background(), "org-2", "alice_x")
	require.NoError(t, err)
	require.Nil(t, k)

	k, err = svc.Resolve(context.Background(), "org-1", "")
	require.NoError(t, err)
	require.Nil(t, k)
}

func TestResolveDuplicateTakesOldest(t *testing.T) {
	svc := newTestService(t)
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedKOL(t, svc, KOL{ID: "kol-new", OrganizationID: "org-1", Name: "Alice (new)", TelegramUsername: "alice_x", CreatedAt: older.Add(time.Hour)})
	seedKOL(t, svc, KOL{ID: "kol-old", OrganizationID: "org-1", Name: "Alice", TelegramUsername: "alice_x", CreatedAt: older})

	k, err := svc.Resolve(context.Background(), "org-1", "alice_x")
	require.NoError(t, err)
	require.Equal(t, "kol-old", k.ID)
}

func TestLinkUpsertsWithoutDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Link(ctx, "chat-1", "kol-1", MatchedByUsername, "777"))
	require.NoError(t, svc.Link(ctx, "chat-1", "kol-1", MatchedByCommand, ""))
	require.NoError(t, svc.Link(ctx, "chat-2", "kol-1", MatchedByCommand, ""))

	var links []ChatLink
	require.NoError(t, svc.db.Order("chat_id").Find(&links).Error)
	require.Len(t, links, 2)

	require.Equal(t, "chat-1", links[0].ChatID)
	require.Equal(t, MatchedByUsername, links[0].MatchedBy)
	require.NotNil(t, links[0].PlatformUserID)
	require.Equal(t, "777", *links[0].PlatformUserID)

	require.Nil(t, links[1].PlatformUserID)
}

func TestResolveByPlatformUserID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedKOL(t, svc, KOL{ID: "kol-1", OrganizationID: "org-1", Name: "Alice", TelegramUsername: "alice_x"})

	k, err := svc.ResolveByPlatformUserID(ctx, "org-1", "777")
	require.NoError(t, err)
	require.Nil(t, k)

	require.NoError(t, svc.Link(ctx, "chat-1", "kol-1", MatchedByUsername, "777"))

	k, err = svc.ResolveByPlatformUserID(ctx, "org-1", "777")
	require.NoError(t, err)
	require.NotNil(t, k)
	require.Equal(t, "kol-1", k.ID)
	require.Equal(t, "Alice", k.Name)

	k, err = svc.ResolveByPlatformUserID(ctx, "org-2", "777")
	require.NoError(t, err)
	require.Nil(t, k)
}

func TestPinHomeChat(t *testing.T) {
	svc := newTestService(t)
	seedKOL(t, svc, KOL{ID: "kol-1", OrganizationID: "org-1", Name: "Alice", TelegramUsername: "alice_x"})

	require.NoError(t, svc.PinHomeChat(context.Background(), "kol-1", "-100123"))

	var k KOL
	require.NoError(t, svc.db.First(&k, "id = ?", "kol-1").Error)
	require.NotNil(t, k.HomeChatID)
	require.Equal(t, "-100123", *k.HomeChatID)
}
