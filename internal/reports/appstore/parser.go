package appstorereport

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Converter is the currency conversion surface the parser needs. Monetary
// values are converted to the app's preferred currency at parse time so
// downstream aggregation never mixes currencies.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error)
}

// Parser handles the three App Store report kinds: the per-product
// subscription summary, the per-subscriber detail, and the subscription
// event report. All three are tab-separated with a header row.
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

// readTSV splits raw report bytes into a header row and data rows. A
// report with no recognizable header yields an empty result, never an
// error, so one bad file cannot abort a multi-day backfill.
func readTSV(raw []byte) (header []string, rows [][]string) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		return nil, nil
	}
	return records[0], records[1:]
}

func (p *Parser) convert(ctx context.Context, amount decimal.Decimal, from, to string, day time.Time) (decimal.Decimal, error) {
	if from == "" || strings.EqualFold(from, to) {
		return amount, nil
	}
	month := day.Format("2006-01")
	return p.converter.Convert(ctx, amount, from, to, &month)
}

var appStoreDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

func parseReportDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range appStoreDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseMoney(raw string) (decimal.Decimal, bool) {
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

func parseCount(raw string) int {
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

func diagnostic(kind, reason string) string {
	return fmt.Sprintf("appstore %s report unparsable: %s", kind, reason)
}
