package organization

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campaignhub-botgateway/pkg/db/option"
	"campaignhub-botgateway/pkg/repository"
	"campaignhub-botgateway/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockOrganizationRepository struct {
	findOneFn func(ctx context.Context, query *Organization, opts ...option.QueryOption) (*Organization, error)
	calls     int
}

func (m *mockOrganizationRepository) Find(context.Context, *Organization, ...option.QueryOption) ([]*Organization, error) {
	return nil, nil
}

func (m *mockOrganizationRepository) FindOne(ctx context.Context, query *Organization, opts ...option.QueryOption) (*Organization, error) {
	m.calls++
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *mockOrganizationRepository) Create(context.Context, *Organization) error { return nil }

var _ repository.Repository[Organization] = (*mockOrganizationRepository)(nil)

func TestFindByWebhookSecretBlankNeverQueries(t *testing.T) {
	repo := &mockOrganizationRepository{}
	svc := &Service{repo: repo}

	org, err := svc.FindByWebhookSecret(context.Background(), "   ")
	require.NoError(t, err)
	require.Nil(t, org)
	require.Zero(t, repo.calls)
}

func TestFindByWebhookSecretRepositoryError(t *testing.T) {
	repo := &mockOrganizationRepository{}
	repo.findOneFn = func(context.Context, *Organization, ...option.QueryOption) (*Organization, error) {
		return nil, errors.New("boom")
	}
	svc := &Service{repo: repo}

	_, err := svc.FindByWebhookSecret(context.Background(), "s3cret")
	require.Error(t, err)
}

func TestFindByWebhookSecret(t *testing.T) {
	db := testutil.NewTestDB(t, &Organization{})
	require.NoError(t, db.Create(&Organization{ID: "org-1", Name: "Acme", Slug: "acme", WebhookSecret: "s3cret", BotToken: "tok"}).Error)
	require.NoError(t, db.Create(&Organization{ID: "org-2", Name: "Other", Slug: "other", WebhookSecret: "other"}).Error)

	svc := NewService(ServiceParams{DB: db})

	org, err := svc.FindByWebhookSecret(context.Background(), "s3cret")
	require.NoError(t, err)
	require.NotNil(t, org)
	require.Equal(t, "org-1", org.ID)
	require.Equal(t, "tok", org.BotToken)

	org, err = svc.FindByWebhookSecret(context.Background(), "S3CRET")
	require.NoError(t, err)
	require.Nil(t, org)
}
