package sync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// FetchResult is what a platform source produced for one chunk.
// SkippedDays counts report days the upstream had not published yet.
type FetchResult struct {
	Batch       reports.Batch
	SkippedDays int
}

// Source pulls report data for one platform over a date range. A
// source owns its credential decoding and upstream client wiring; the
// orchestrator only sees normalized batches.
type Source interface {
	Platform() enums.Platform
	FetchRange(ctx context.Context, conn *models.Connection, preferredCurrency string, from, to time.Time) (FetchResult, error)
}

// SourcesParams carry the shared dependencies every source is built
// from. RecentReportGrace is in days; reports missing inside the grace
// window are skipped without raising an error.
type SourcesParams struct {
	Converter         Converter
	Logger            *logger.Logger
	RecentReportGrace int
	Now               func() time.Time
}

// Converter is the currency conversion surface report parsing needs.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error)
}

// NewSources returns the platform sources in sync order.
func NewSources(params SourcesParams) ([]Source, error) {
	if params.Now == nil {
		params.Now = time.Now
	}

	stripeSrc, err := newStripeSource(params)
	if err != nil {
		return nil, err
	}
	playSrc, err := newGooglePlaySource(params)
	if err != nil {
		return nil, err
	}
	appStoreSrc, err := newAppStoreSource(params)
	if err != nil {
		return nil, err
	}

	// Fixed order: card processor first, then the two stores.
	return []Source{stripeSrc, playSrc, appStoreSrc}, nil
}

func requireConverter(params SourcesParams) error {
	if params.Converter == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "currency converter required")
	}
	return nil
}
