package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"campaignhub-botgateway/pkg/config"
)

func TestBudgetAuthorizer(t *testing.T) {
	cfg := &config.Config{}
	cfg.Commands.BudgetOperators = []string{"Boss", "@ops_lead", "org-2:scoped", "org-1:", ":nobody"}

	a, err := NewBudgetAuthorizer(cfg)
	require.NoError(t, err)

	tests := []struct {
		org, user string
		allowed   bool
	}{
		{org: "org-1", user: "boss", allowed: true},
		{org: "org-9", user: "@BOSS", allowed: true},
		{org: "org-1", user: "ops_lead", allowed: true},
		{org: "org-2", user: "scoped", allowed: true},
		{org: "org-1", user: "scoped", allowed: false},
		{org: "org-1", user: "nobody", allowed: false},
		{org: "org-1", user: "alice_x", allowed: false},
		{org: "org-1", user: "", allowed: false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.allowed, a.CanViewBudget(tt.org, tt.user), "%s/%s", tt.org, tt.user)
	}
}

func TestBudgetAuthorizerEmpty(t *testing.T) {
	a, err := NewBudgetAuthorizer(&config.Config{})
	require.NoError(t, err)
	require.False(t, a.CanViewBudget("org-1", "boss"))
}
