package command

import (
	"fmt"
	"strings"

	"campaignhub-botgateway/pkg/config"
	"campaignhub-botgateway/services/kol"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/zap"
)

const (
	anyOrganization = "*"
	actViewBudget   = "budget:view"
)

const budgetModel = `
[request_definition]
r = sub, dom, act

[policy_definition]
p = sub, dom, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.dom == "*" || r.dom == p.dom) && r.act == p.act
`

// BudgetAuthorizer decides who may read campaign budgets from chat.
type BudgetAuthorizer interface {
	CanViewBudget(organizationID, username string) bool
}

type casbinAuthorizer struct {
	enforcer *casbin.Enforcer
}

// NewBudgetAuthorizer loads COMMANDS.BUDGET_OPERATORS into an in-memory
// enforcer. "username" entries apply to every organization,
// "org_id:username" entries to one.
func NewBudgetAuthorizer(cfg *config.Config) (BudgetAuthorizer, error) {
	m, err := model.NewModelFromString(budgetModel)
	if err != nil {
		return nil, fmt.Errorf("load budget model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create budget enforcer: %w", err)
	}

	for _, entry := range cfg.Commands.BudgetOperators {
		dom, user := anyOrganization, entry
		if i := strings.LastIndex(entry, ":"); i >= 0 {
			dom, user = strings.TrimSpace(entry[:i]), entry[i+1:]
		}
		user = kol.NormalizeUsername(user)
		if user == "" || dom == "" {
			zap.L().Warn("ignoring malformed budget operator entry", zap.String("entry", entry))
			continue
		}
		if _, err := e.AddPolicy(user, dom, actViewBudget); err != nil {
			return nil, fmt.Errorf("add budget policy: %w", err)
		}
	}

	return &casbinAuthorizer{enforcer: e}, nil
}

func (a *casbinAuthorizer) CanViewBudget(organizationID, username string) bool {
	user := kol.NormalizeUsername(username)
	if user == "" {
		return false
	}

	ok, err := a.enforcer.Enforce(user, organizationID, actViewBudget)
	if err != nil {
		zap.L().Error("budget policy evaluation failed", zap.Error(err))
		return false
	}
	return ok
}
