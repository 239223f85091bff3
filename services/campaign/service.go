package campaign

import (
	"context"
	"fmt"
	"time"

	"campaignhub-botgateway/pkg/config"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("campaign.module",
	fx.Provide(
		NewService,
		ProvideTitlePrefixes,
		fx.Annotate(NewTitleMatcher, fx.As(new(ChatMatcher))),
	),
)

// ========================================================
// Service Definition
// ========================================================

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// ActiveAssignments lists the KOL's open assignments in the organization whose
// campaign is in one of campaignStatuses (ACTIVE when none are given), oldest
// assignment first. Each result carries its campaign.
func (s *Service) ActiveAssignments(ctx context.Context, organizationID, kolID string, campaignStatuses ...CampaignStatus) ([]Assignment, error) {
	if len(campaignStatuses) == 0 {
		campaignStatuses = []CampaignStatus{CampaignStatusActive}
	}

	var out []Assignment
	err := s.db.WithContext(ctx).
		Select("campaign_kol_assignments.*").
		Joins("JOIN campaigns ON campaigns.id = campaign_kol_assignments.campaign_id").
		Where("campaign_kol_assignments.kol_id = ? AND campaign_kol_assignments.status IN ?", kolID, OpenAssignmentStatuses).
		Where("campaigns.organization_id = ? AND campaigns.status IN ?", organizationID, campaignStatuses).
		Order("campaign_kol_assignments.created_at ASC").
		Order("campaign_kol_assignments.id ASC").
		Preload("Campaign").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return out, nil
}

// ListActive returns the organization's ACTIVE campaigns, oldest first.
func (s *Service) ListActive(ctx context.Context, organizationID string) ([]Campaign, error) {
	var out []Campaign
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, CampaignStatusActive).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	return out, nil
}

type BudgetSummary struct {
	Total      float64
	Allocated  float64
	Remaining  float64
	KOLCount   int64
	DaysActive int
}

// Budget sums the per-assignment allocations of c.
func (s *Service) Budget(ctx context.Context, c *Campaign, now time.Time) (*BudgetSummary, error) {
	var row struct {
		Allocated float64
		KOLCount  int64
	}
	err := s.db.WithContext(ctx).
		Model(&Assignment{}).
		Select("COALESCE(SUM(allocated_budget), 0) AS allocated, COUNT(*) AS kol_count").
		Where("campaign_id = ?", c.ID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("sum campaign allocations: %w", err)
	}

	return &BudgetSummary{
		Total:      c.TotalBudget,
		Allocated:  row.Allocated,
		Remaining:  c.TotalBudget - row.Allocated,
		KOLCount:   row.KOLCount,
		DaysActive: c.DaysActive(now),
	}, nil
}

// TitlePrefixes is the configured list of organization prefixes stripped from
// group titles before matching.
type TitlePrefixes []string

func ProvideTitlePrefixes(cfg *config.Config) TitlePrefixes {
	return TitlePrefixes(cfg.Commands.BudgetTitlePrefixes)
}
