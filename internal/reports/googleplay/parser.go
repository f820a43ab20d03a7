package googleplayreport

import (
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Converter is the currency conversion surface the parser needs.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error)
}

// Parser handles Play Console bucket exports: financial reports carry
// transactions, subscription reports carry per-date subscriber counts,
// statistics reports occasionally carry subscriber columns too.
type Parser struct {
	converter Converter
	logger    *logger.Logger
}

// ParserParams wires the parser's dependencies.
type ParserParams struct {
	Converter Converter
	Logger    *logger.Logger
}

// NewParser validates dependencies and builds a Parser.
func NewParser(params ParserParams) (*Parser, error) {
	if params.Converter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "currency converter required")
	}
	return &Parser{converter: params.Converter, logger: params.Logger}, nil
}

var (
	playDateColumns = columnPatterns(
		`^transaction\s*date$`,
		`^order\s*charged\s*date$`,
		`^date$`,
	)
	playTypeColumns = columnPatterns(
		`^transaction\s*type$`,
		`^financial\s*status$`,
	)
	playAmountColumns = columnPatterns(
		`^amount\s*\(merchant\s*currency\)$`,
		`^charged\s*amount$`,
		`^item\s*price$`,
		`^amount$`,
	)
	playCurrencyColumns = columnPatterns(
		`^merchant\s*currency$`,
		`^currency\s*of\s*sale$`,
		`^buyer\s*currency$`,
		`^currency$`,
	)
	playNewColumns = columnPatterns(
		`^new\s*subscri(bers|ptions)$`,
		`^new$`,
	)
	playCanceledColumns = columnPatterns(
		`^cancell?ed\s*subscri(bers|ptions)$`,
		`^cancell?ed$`,
	)
	playRenewalColumns = columnPatterns(
		`^renewals?$`,
		`^renewed\s*subscri(bers|ptions)$`,
	)
	playActiveColumns = columnPatterns(
		`^active\s*subscri(bers|ptions)$`,
		`^total\s*active$`,
	)
	playTrialColumns = columnPatterns(
		`^free\s*trials?$`,
		`^trial\s*subscri(bers|ptions)$`,
	)
)

var revenueTypePattern = regexp.MustCompile(`(?i)charge|charged`)
var refundTypePattern = regexp.MustCompile(`(?i)refund|chargeback`)
var ignoredTypePattern = regexp.MustCompile(`(?i)google\s*fee|tax`)

// Parse dispatches a decoded report to the parser for its kind. Unknown
// kinds yield an empty batch plus a diagnostic.
func (p *Parser) Parse(ctx context.Context, kind enums.ReportKind, decoded []byte, preferredCurrency string) (reports.Batch, error) {
	switch kind {
	case enums.ReportKindFinancial:
		return p.parseFinancial(ctx, decoded, preferredCurrency)
	case enums.ReportKindSubscription, enums.ReportKindStatistics:
		return p.parseSubscriberCounts(decoded, kind), nil
	default:
		return reports.Batch{Diagnostics: []string{"googleplay report kind not recognized"}}, nil
	}
}

// parseFinancial rolls transactions up into per-date revenue. Fee and tax
// line items are skipped; refund rows subtract.
func (p *Parser) parseFinancial(ctx context.Context, decoded []byte, preferredCurrency string) (reports.Batch, error) {
	header, rows := readCSV(decoded)
	if header == nil {
		return reports.Batch{Diagnostics: []string{playDiagnostic("financial", "empty or malformed file")}}, nil
	}

	dateIdx := findColumn(header, playDateColumns)
	amountIdx := findColumn(header, playAmountColumns)
	if dateIdx < 0 || amountIdx < 0 {
		return reports.Batch{Diagnostics: []string{playDiagnostic("financial", "no date or amount column recognized")}}, nil
	}
	typeIdx := findColumn(header, playTypeColumns)
	currencyIdx := findColumn(header, playCurrencyColumns)

	daily := map[time.Time]*reports.DailyAggregate{}
	for _, row := range rows {
		day, ok := parsePlayDate(cellAt(row, dateIdx))
		if !ok {
			continue
		}
		amount, ok := parsePlayMoney(cellAt(row, amountIdx))
		if !ok {
			continue
		}

		txType := cellAt(row, typeIdx)
		sign := decimal.NewFromInt(1)
		switch {
		case ignoredTypePattern.MatchString(txType):
			continue
		case refundTypePattern.MatchString(txType):
			sign = decimal.NewFromInt(-1)
			amount = amount.Abs()
		case txType != "" && !revenueTypePattern.MatchString(txType):
			continue
		}

		currency := strings.ToUpper(cellAt(row, currencyIdx))
		converted := amount
		if currency != "" && !strings.EqualFold(currency, preferredCurrency) {
			month := day.Format("2006-01")
			var err error
			converted, err = p.converter.Convert(ctx, amount, currency, preferredCurrency, &month)
			if err != nil {
				return reports.Batch{}, err
			}
		}

		agg := dailyFor(daily, day)
		agg.Revenue = agg.Revenue.Add(converted.Mul(sign))
		agg.RevenueEvents++
	}

	return reports.Batch{Daily: sortedDaily(daily)}, nil
}

// parseSubscriberCounts handles subscription and statistics exports whose
// rows are already per-date counts.
func (p *Parser) parseSubscriberCounts(decoded []byte, kind enums.ReportKind) reports.Batch {
	header, rows := readCSV(decoded)
	if header == nil {
		return reports.Batch{Diagnostics: []string{playDiagnostic(kind.String(), "empty or malformed file")}}
	}

	dateIdx := findColumn(header, playDateColumns)
	if dateIdx < 0 {
		return reports.Batch{Diagnostics: []string{playDiagnostic(kind.String(), "no date column recognized")}}
	}

	newIdx := findColumn(header, playNewColumns)
	canceledIdx := findColumn(header, playCanceledColumns)
	renewalIdx := findColumn(header, playRenewalColumns)
	activeIdx := findColumn(header, playActiveColumns)
	trialIdx := findColumn(header, playTrialColumns)
	if newIdx < 0 && canceledIdx < 0 && renewalIdx < 0 && activeIdx < 0 && trialIdx < 0 {
		return reports.Batch{Diagnostics: []string{playDiagnostic(kind.String(), "no subscriber columns recognized")}}
	}

	daily := map[time.Time]*reports.DailyAggregate{}
	for _, row := range rows {
		day, ok := parsePlayDate(cellAt(row, dateIdx))
		if !ok {
			continue
		}
		agg := dailyFor(daily, day)
		agg.New += parsePlayCount(cellAt(row, newIdx))
		agg.Canceled += parsePlayCount(cellAt(row, canceledIdx))
		agg.Renewals += parsePlayCount(cellAt(row, renewalIdx))

		active := parsePlayCount(cellAt(row, activeIdx))
		trial := parsePlayCount(cellAt(row, trialIdx))
		if active > agg.Active {
			agg.Active = active
		}
		if trial > agg.Trial {
			agg.Trial = trial
		}
		if paid := active - trial; paid > agg.Paid {
			agg.Paid = paid
		}
	}

	return reports.Batch{Daily: sortedDaily(daily), FlowsReliable: newIdx >= 0 || canceledIdx >= 0 || renewalIdx >= 0}
}

// MergeDaily collapses aggregates from multiple files describing the same
// date: flow metrics sum, stock metrics take the maximum observed value so
// snapshot-style counts are never double counted.
func MergeDaily(aggs []reports.DailyAggregate) []reports.DailyAggregate {
	merged := map[time.Time]*reports.DailyAggregate{}
	for _, agg := range aggs {
		day := agg.Date.UTC().Truncate(24 * time.Hour)
		target, ok := merged[day]
		if !ok {
			copied := agg
			copied.Date = day
			merged[day] = &copied
			continue
		}
		target.New += agg.New
		target.Canceled += agg.Canceled
		target.Renewals += agg.Renewals
		target.Revenue = target.Revenue.Add(agg.Revenue)
		target.RevenueEvents += agg.RevenueEvents
		if agg.Active > target.Active {
			target.Active = agg.Active
		}
		if agg.Trial > target.Trial {
			target.Trial = agg.Trial
		}
		if agg.Paid > target.Paid {
			target.Paid = agg.Paid
		}
	}
	return sortedDaily(merged)
}

func readCSV(decoded []byte) (header []string, rows [][]string) {
	reader := csv.NewReader(strings.NewReader(string(decoded)))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		return nil, nil
	}
	return records[0], records[1:]
}

func dailyFor(daily map[time.Time]*reports.DailyAggregate, day time.Time) *reports.DailyAggregate {
	agg, ok := daily[day]
	if !ok {
		agg = &reports.DailyAggregate{Date: day}
		daily[day] = agg
	}
	return agg
}

func sortedDaily(daily map[time.Time]*reports.DailyAggregate) []reports.DailyAggregate {
	out := make([]reports.DailyAggregate, 0, len(daily))
	for _, agg := range daily {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

var playDateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"20060102",
	"2006/01/02",
}

func parsePlayDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range playDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC().Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

func parsePlayMoney(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

func parsePlayCount(raw string) int {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func columnPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

func findColumn(header []string, patterns []*regexp.Regexp) int {
	for _, pattern := range patterns {
		for i, cell := range header {
			if pattern.MatchString(strings.TrimSpace(cell)) {
				return i
			}
		}
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func playDiagnostic(kind, reason string) string {
	return fmt.Sprintf("googleplay %s report unparsable: %s", kind, reason)
}
