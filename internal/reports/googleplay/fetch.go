package googleplayreport

import (
	"context"
	"time"

	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
	"github.com/revlytic/revlytic-backend/pkg/storage/gcs"
)

// Bucket is the object storage surface the fetcher needs, satisfied by
// the GCS client.
type Bucket interface {
	ListObjects(ctx context.Context, prefix string) ([]gcs.Object, error)
	ReadObject(ctx context.Context, name string) ([]byte, error)
}

// Fetcher scans a Play Console export bucket, classifies each object, and
// parses everything it recognizes into one merged batch.
type Fetcher struct {
	bucket Bucket
	parser *Parser
	logger *logger.Logger
}

// FetcherParams wires the fetcher's dependencies.
type FetcherParams struct {
	Bucket Bucket
	Parser *Parser
	Logger *logger.Logger
}

// NewFetcher validates dependencies and builds a Fetcher.
func NewFetcher(params FetcherParams) (*Fetcher, error) {
	if params.Bucket == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bucket client required")
	}
	if params.Parser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "report parser required")
	}
	return &Fetcher{bucket: params.Bucket, parser: params.Parser, logger: params.Logger}, nil
}

// FetchRange pulls every recognizable report under the prefix and keeps
// the daily rows falling inside [from, to]. Individual unreadable or
// unrecognizable files become diagnostics, never errors.
func (f *Fetcher) FetchRange(ctx context.Context, prefix, preferredCurrency string, from, to time.Time) (reports.Batch, error) {
	objects, err := f.bucket.ListObjects(ctx, prefix)
	if err != nil {
		return reports.Batch{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list report bucket")
	}

	merged := reports.Batch{}
	var daily []reports.DailyAggregate

	for _, object := range objects {
		kind := ClassifyObject(object.Name)

		raw, err := f.bucket.ReadObject(ctx, object.Name)
		if err != nil {
			merged.Diagnostics = append(merged.Diagnostics, "unreadable object "+object.Name+": "+err.Error())
			continue
		}
		decoded, err := Decode(raw)
		if err != nil {
			merged.Diagnostics = append(merged.Diagnostics, "undecodable object "+object.Name+": "+err.Error())
			continue
		}
		if kind == enums.ReportKindUnknown {
			kind = SniffKind(decoded)
		}

		batch, err := f.parser.Parse(ctx, kind, decoded, preferredCurrency)
		if err != nil {
			return reports.Batch{}, err
		}
		daily = append(daily, batch.Daily...)
		batch.Daily = nil
		merged.Merge(batch)
	}

	for _, agg := range MergeDaily(daily) {
		if agg.Date.Before(from) || agg.Date.After(to) {
			continue
		}
		merged.Daily = append(merged.Daily, agg)
	}

	return merged, nil
}
