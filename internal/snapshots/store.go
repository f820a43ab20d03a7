package snapshots

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Store guards the one-row-per-(app, platform, date) invariant. Duplicate
// rows are a known historical defect, so every upsert tolerates and
// repairs them instead of assuming the index held.
type Store struct {
	repo   Repository
	logger *logger.Logger
}

// StoreParams wires the store's dependencies.
type StoreParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// NewStore validates dependencies and builds a Store.
func NewStore(params StoreParams) (*Store, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot repo required")
	}
	return &Store{repo: params.Repo, logger: params.Logger}, nil
}

// Upsert writes the snapshot for its key: overwrite the first existing
// row, delete any extras, insert when none exist.
func (s *Store) Upsert(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	if snapshot == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot is required")
	}

	existing, err := s.repo.ListForKey(ctx, snapshot.AppID, snapshot.Platform, snapshot.Date)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		if snapshot.ID == uuid.Nil {
			snapshot.ID = uuid.New()
		}
		return s.repo.Create(ctx, snapshot)
	}

	keep := existing[0]
	snapshot.ID = keep.ID
	snapshot.CreatedAt = keep.CreatedAt
	if err := s.repo.Update(ctx, snapshot); err != nil {
		return err
	}

	if len(existing) > 1 {
		extras := make([]uuid.UUID, 0, len(existing)-1)
		for _, row := range existing[1:] {
			extras = append(extras, row.ID)
		}
		if s.logger != nil {
			s.logger.Warn(ctx, "removing duplicate metrics snapshots")
		}
		return s.repo.DeleteByIDs(ctx, extras)
	}
	return nil
}

// RollupUnified recomputes the unified snapshot for one date by summing
// every non-unified platform snapshot. Must re-run whenever a constituent
// platform snapshot changes.
func (s *Store) RollupUnified(ctx context.Context, appID uuid.UUID, date time.Time) error {
	rows, err := s.repo.ListForDate(ctx, appID, date)
	if err != nil {
		return err
	}

	unified := &models.MetricsSnapshot{
		AppID:    appID,
		Platform: enums.PlatformUnified,
		Date:     date.UTC().Truncate(24 * time.Hour),
	}
	for _, row := range rows {
		if row.Platform == enums.PlatformUnified {
			continue
		}
		unified.AddCounts(row)
	}

	return s.Upsert(ctx, unified)
}

// RollupUnifiedRange re-rolls every date in [from, to] inclusive.
func (s *Store) RollupUnifiedRange(ctx context.Context, appID uuid.UUID, from, to time.Time) error {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	for day := from; !day.After(to); day = day.Add(24 * time.Hour) {
		if err := s.RollupUnified(ctx, appID, day); err != nil {
			return err
		}
	}
	return nil
}

// Query returns snapshots for an app over a date range, optionally
// filtered to one platform.
func (s *Store) Query(ctx context.Context, appID uuid.UUID, platform enums.Platform, from, to time.Time) ([]models.MetricsSnapshot, error) {
	if platform != "" && !platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown platform")
	}
	return s.repo.ListRange(ctx, appID, platform, from, to)
}
