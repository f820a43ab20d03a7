package appstorereport

import (
	"context"
	"time"

	"github.com/revlytic/revlytic-backend/internal/reports"
)

// ParseSummary handles the per-product subscription summary report. Each
// row carries stock counts for one product; the report as a whole
// describes a single date, supplied by the caller from report metadata.
// Stock counts become a DailyAggregate; the summary has no event labels,
// so it never contributes flow metrics.
func (p *Parser) ParseSummary(ctx context.Context, raw []byte, reportDate time.Time) reports.Batch {
	header, rows := readTSV(raw)
	if header == nil {
		return reports.Batch{Diagnostics: []string{diagnostic("summary", "empty or malformed file")}}
	}

	activeIdx := findColumn(header, activeStandardColumns)
	trialIdx := findColumn(header, activeTrialColumns)
	if activeIdx < 0 && trialIdx < 0 {
		return reports.Batch{Diagnostics: []string{diagnostic("summary", "no subscriber count columns recognized")}}
	}

	agg := reports.DailyAggregate{Date: reportDate.UTC().Truncate(24 * time.Hour)}
	for _, row := range rows {
		standard := parseCount(cellAt(row, activeIdx))
		trial := parseCount(cellAt(row, trialIdx))
		agg.Active += standard + trial
		agg.Trial += trial
		agg.Paid += standard
	}

	return reports.Batch{Daily: []reports.DailyAggregate{agg}}
}
