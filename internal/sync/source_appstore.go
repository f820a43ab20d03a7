package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/revlytic/revlytic-backend/internal/connections"
	appstorereport "github.com/revlytic/revlytic-backend/internal/reports/appstore"
	"github.com/revlytic/revlytic-backend/pkg/appstoreconnect"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// appStoreAPI is the slice of the report client the source uses.
type appStoreAPI interface {
	DownloadReport(ctx context.Context, reportType string, date time.Time) ([]byte, error)
}

type appStoreSource struct {
	parser    *appstorereport.Parser
	logg      *logger.Logger
	graceDays int
	now       func() time.Time
	newClient func(creds connections.AppStoreCredentials) (appStoreAPI, error)
}

func newAppStoreSource(params SourcesParams) (*appStoreSource, error) {
	if err := requireConverter(params); err != nil {
		return nil, err
	}
	parser, err := appstorereport.NewParser(appstorereport.ParserParams{
		Converter: params.Converter,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &appStoreSource{
		parser:    parser,
		logg:      params.Logger,
		graceDays: params.RecentReportGrace,
		now:       params.Now,
		newClient: func(creds connections.AppStoreCredentials) (appStoreAPI, error) {
			return appstoreconnect.NewClient(creds.IssuerID, creds.KeyID, creds.VendorNumber, creds.PrivateKey)
		},
	}, nil
}

func (s *appStoreSource) Platform() enums.Platform {
	return enums.PlatformAppStore
}

// FetchRange walks the range one report day at a time. Reports are
// published with a delay, so days inside the grace window that come
// back unavailable are quietly skipped; older gaps are skipped too but
// surfaced in the process log.
func (s *appStoreSource) FetchRange(ctx context.Context, conn *models.Connection, preferredCurrency string, from, to time.Time) (FetchResult, error) {
	var creds connections.AppStoreCredentials
	if err := json.Unmarshal(conn.Credentials, &creds); err != nil {
		return FetchResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding app store credentials")
	}

	client, err := s.newClient(creds)
	if err != nil {
		return FetchResult{}, pkgerrors.Wrap(pkgerrors.CodeAuthentication, err, "building app store client")
	}

	var result FetchResult
	graceCutoff := dayStart(s.now()).AddDate(0, 0, -s.graceDays)

	for day := dayStart(from); day.Before(dayStart(to)); day = day.AddDate(0, 0, 1) {
		detail, err := client.DownloadReport(ctx, appstoreconnect.ReportTypeSubscriber, day)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeReportUnavailable) {
				result.SkippedDays++
				if day.Before(graceCutoff) && s.logg != nil {
					s.logg.Warn(s.logg.WithPlatform(ctx, string(enums.PlatformAppStore)),
						"report missing outside the publication grace window")
				}
				continue
			}
			return FetchResult{}, err
		}

		dayBatch, err := s.parser.ParseDetail(ctx, detail, day, preferredCurrency)
		if err != nil {
			return FetchResult{}, err
		}
		result.Batch.Merge(dayBatch)

		summary, err := client.DownloadReport(ctx, appstoreconnect.ReportTypeSubscription, day)
		if err != nil {
			if !pkgerrors.HasCode(err, pkgerrors.CodeReportUnavailable) {
				return FetchResult{}, err
			}
		} else {
			// Summary counts feed the aggregate columns the detail rows
			// cannot reconstruct on their own.
			result.Batch.Merge(s.parser.ParseSummary(ctx, summary, day))
		}

		events, err := client.DownloadReport(ctx, appstoreconnect.ReportTypeSubscriptionEvent, day)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeReportUnavailable) {
				continue
			}
			return FetchResult{}, err
		}
		eventBatch, err := s.parser.ParseEvents(ctx, events, preferredCurrency)
		if err != nil {
			return FetchResult{}, err
		}
		result.Batch.Merge(eventBatch)
	}

	return result, nil
}
