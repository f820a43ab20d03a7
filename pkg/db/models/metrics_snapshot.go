package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// MetricsSnapshot is one computed row of daily metrics for an (app,
// platform, date). The store guarantees exactly one row per key and
// self-heals duplicates on write.
type MetricsSnapshot struct {
	ID       uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppID    uuid.UUID      `gorm:"column:app_id;type:uuid;not null;index:idx_snapshots_app_platform_date"`
	Platform enums.Platform `gorm:"column:platform;not null;index:idx_snapshots_app_platform_date"`
	Date     time.Time      `gorm:"column:date;type:date;not null;index:idx_snapshots_app_platform_date"`

	ActiveSubscribers  int `gorm:"column:active_subscribers;not null;default:0"`
	TrialSubscribers   int `gorm:"column:trial_subscribers;not null;default:0"`
	PaidSubscribers    int `gorm:"column:paid_subscribers;not null;default:0"`
	MonthlySubscribers int `gorm:"column:monthly_subscribers;not null;default:0"`
	YearlySubscribers  int `gorm:"column:yearly_subscribers;not null;default:0"`

	FirstPayments int `gorm:"column:first_payments;not null;default:0"`
	Renewals      int `gorm:"column:renewals;not null;default:0"`
	Cancellations int `gorm:"column:cancellations;not null;default:0"`
	Churn         int `gorm:"column:churn;not null;default:0"`
	Refunds       int `gorm:"column:refunds;not null;default:0"`
	// WillCancel is a stock figure (subscriptions currently scheduled
	// to cancel), not a daily flow.
	WillCancel int `gorm:"column:will_cancel;not null;default:0"`

	MRR decimal.Decimal `gorm:"column:mrr;type:numeric(14,2);not null;default:0"`

	ChargedRevenue        decimal.Decimal `gorm:"column:charged_revenue;type:numeric(14,2);not null;default:0"`
	ChargedRevenueMonthly decimal.Decimal `gorm:"column:charged_revenue_monthly;type:numeric(14,2);not null;default:0"`
	ChargedRevenueYearly  decimal.Decimal `gorm:"column:charged_revenue_yearly;type:numeric(14,2);not null;default:0"`
	RevenueExclTax        decimal.Decimal `gorm:"column:revenue_excl_tax;type:numeric(14,2);not null;default:0"`
	RevenueExclTaxMonthly decimal.Decimal `gorm:"column:revenue_excl_tax_monthly;type:numeric(14,2);not null;default:0"`
	RevenueExclTaxYearly  decimal.Decimal `gorm:"column:revenue_excl_tax_yearly;type:numeric(14,2);not null;default:0"`
	Proceeds              decimal.Decimal `gorm:"column:proceeds;type:numeric(14,2);not null;default:0"`
	ProceedsMonthly       decimal.Decimal `gorm:"column:proceeds_monthly;type:numeric(14,2);not null;default:0"`
	ProceedsYearly        decimal.Decimal `gorm:"column:proceeds_yearly;type:numeric(14,2);not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AddCounts accumulates every additive field from other into the
// receiver. Used by the unified roll-up; MRR and revenue figures are
// additive across platforms because they share the app's preferred
// currency.
func (m *MetricsSnapshot) AddCounts(other MetricsSnapshot) {
	m.ActiveSubscribers += other.ActiveSubscribers
	m.TrialSubscribers += other.TrialSubscribers
	m.PaidSubscribers += other.PaidSubscribers
	m.MonthlySubscribers += other.MonthlySubscribers
	m.YearlySubscribers += other.YearlySubscribers
	m.FirstPayments += other.FirstPayments
	m.Renewals += other.Renewals
	m.Cancellations += other.Cancellations
	m.Churn += other.Churn
	m.Refunds += other.Refunds
	m.WillCancel += other.WillCancel
	m.MRR = m.MRR.Add(other.MRR)
	m.ChargedRevenue = m.ChargedRevenue.Add(other.ChargedRevenue)
	m.ChargedRevenueMonthly = m.ChargedRevenueMonthly.Add(other.ChargedRevenueMonthly)
	m.ChargedRevenueYearly = m.ChargedRevenueYearly.Add(other.ChargedRevenueYearly)
	m.RevenueExclTax = m.RevenueExclTax.Add(other.RevenueExclTax)
	m.RevenueExclTaxMonthly = m.RevenueExclTaxMonthly.Add(other.RevenueExclTaxMonthly)
	m.RevenueExclTaxYearly = m.RevenueExclTaxYearly.Add(other.RevenueExclTaxYearly)
	m.Proceeds = m.Proceeds.Add(other.Proceeds)
	m.ProceedsMonthly = m.ProceedsMonthly.Add(other.ProceedsMonthly)
	m.ProceedsYearly = m.ProceedsYearly.Add(other.ProceedsYearly)
}
