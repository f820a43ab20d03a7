package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlytic/revlytic-backend/internal/connections"
	"github.com/revlytic/revlytic-backend/pkg/appstoreconnect"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
)

// stubReportAPI serves canned report bytes keyed by type and day, and
// answers REPORT_UNAVAILABLE for everything else.
type stubReportAPI struct {
	reports map[string][]byte
}

func reportKey(reportType string, date time.Time) string {
	return reportType + "|" + date.Format("2006-01-02")
}

func (s *stubReportAPI) DownloadReport(_ context.Context, reportType string, date time.Time) ([]byte, error) {
	if raw, ok := s.reports[reportKey(reportType, date)]; ok {
		return raw, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeReportUnavailable, "no report for this day")
}

func newAppStoreTestSource(t *testing.T, api appStoreAPI) *appStoreSource {
	t.Helper()
	src, err := newAppStoreSource(SourcesParams{
		Converter:         identityConverter{},
		RecentReportGrace: 3,
		Now:               func() time.Time { return syncNow },
	})
	require.NoError(t, err)
	src.newClient = func(connections.AppStoreCredentials) (appStoreAPI, error) {
		return api, nil
	}
	return src
}

func appStoreTestConnection() *models.Connection {
	return &models.Connection{
		Platform:    enums.PlatformAppStore,
		Credentials: json.RawMessage(`{"issuer_id":"i","key_id":"k","vendor_number":"v","private_key":"p"}`),
	}
}

func TestAppStoreSourceSkipsMissingDaysInGraceWindow(t *testing.T) {
	from := syncNow.AddDate(0, 0, -4)
	to := syncNow

	detail := "Event Date\tSubscription Apple ID\tEvent\tCustomer Price\tCustomer Currency\n" +
		from.Format("2006-01-02") + "\tsub-1\tRenew\t4.99\tUSD\n"
	api := &stubReportAPI{reports: map[string][]byte{
		reportKey(appstoreconnect.ReportTypeSubscriber, dayStart(from)): []byte(detail),
	}}
	src := newAppStoreTestSource(t, api)

	result, err := src.FetchRange(context.Background(), appStoreTestConnection(), "USD", from, to)
	require.NoError(t, err)

	assert.Equal(t, 3, result.SkippedDays, "the three report-less days are skipped, not failed")
	require.Len(t, result.Batch.Events, 1)
	assert.Equal(t, enums.RevenueEventTypeRenewal, result.Batch.Events[0].Type)
	require.Len(t, result.Batch.Subscriptions, 1)
	assert.Equal(t, "sub-1", result.Batch.Subscriptions[0].ExternalID)
}

func TestAppStoreSourceMergesSummaryCounts(t *testing.T) {
	day := dayStart(syncNow.AddDate(0, 0, -2))

	detail := "Event Date\tSubscription Apple ID\tEvent\tCustomer Price\tCustomer Currency\n" +
		day.Format("2006-01-02") + "\tsub-1\tRenew\t4.99\tUSD\n"
	summary := "App Name\tSubscription Name\tActive Standard Price Subscriptions\tActive Free Trial Introductory Offer Subscriptions\n" +
		"MyApp\tPro Monthly\t120\t15\n"
	api := &stubReportAPI{reports: map[string][]byte{
		reportKey(appstoreconnect.ReportTypeSubscriber, day):   []byte(detail),
		reportKey(appstoreconnect.ReportTypeSubscription, day): []byte(summary),
	}}
	src := newAppStoreTestSource(t, api)

	result, err := src.FetchRange(context.Background(), appStoreTestConnection(), "USD",
		day, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, result.Batch.Daily, 1, "summary counts must ride along with the detail rows")
	agg := result.Batch.Daily[0]
	assert.True(t, agg.Date.Equal(day))
	assert.Equal(t, 135, agg.Active)
	assert.Equal(t, 15, agg.Trial)
	require.Len(t, result.Batch.Events, 1)
}

func TestAppStoreSourceAllDaysUnavailable(t *testing.T) {
	src := newAppStoreTestSource(t, &stubReportAPI{})

	// All days come back unavailable: that is a skip, never an error.
	result, err := src.FetchRange(context.Background(), appStoreTestConnection(), "USD",
		syncNow.AddDate(0, 0, -2), syncNow)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SkippedDays)
	assert.True(t, result.Batch.Empty())
}

func TestAppStoreSourceRejectsMalformedCredentials(t *testing.T) {
	src := newAppStoreTestSource(t, &stubReportAPI{})
	conn := &models.Connection{
		Platform:    enums.PlatformAppStore,
		Credentials: json.RawMessage(`not-json`),
	}

	_, err := src.FetchRange(context.Background(), conn, "USD", syncNow.AddDate(0, 0, -1), syncNow)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
