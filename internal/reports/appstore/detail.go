package appstorereport

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/internal/classify"
	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// ParseDetail handles the per-subscriber detail report. Each row describes
// one subscriber's current subscription plus the charge (if any) attached
// to it. The detail report omits the event label for standard renewals, so
// unlabeled rows with a positive customer price classify as renewals.
func (p *Parser) ParseDetail(ctx context.Context, raw []byte, reportDate time.Time, preferredCurrency string) (reports.Batch, error) {
	header, rows := readTSV(raw)
	if header == nil {
		return reports.Batch{Diagnostics: []string{diagnostic("detail", "empty or malformed file")}}, nil
	}

	subIdx := findColumn(header, subscriptionIDColumns)
	if subIdx < 0 {
		return reports.Batch{Diagnostics: []string{diagnostic("detail", "no subscription id column recognized")}}, nil
	}

	dateIdx := findColumn(header, dateColumns)
	eventIdx := findColumn(header, eventColumns)
	priceIdx := findColumn(header, priceColumns)
	currencyIdx := findColumn(header, currencyColumns)
	proceedsIdx := findColumn(header, proceedsColumns)
	countryIdx := findColumn(header, countryColumns)
	productIdx := findColumn(header, productColumns)
	startIdx := findColumn(header, subscriptionStartColumns)
	expireIdx := findColumn(header, subscriptionExpireColumns)
	durationIdx := findColumn(header, durationColumns)
	autoRenewIdx := findColumn(header, autoRenewColumns)
	refundIdx := findColumn(header, refundColumns)

	batch := reports.Batch{FlowsReliable: eventIdx >= 0}

	for _, row := range rows {
		externalID := cellAt(row, subIdx)
		if externalID == "" {
			continue
		}

		rowDate := reportDate.UTC()
		if parsed, ok := parseReportDate(cellAt(row, dateIdx)); ok {
			rowDate = parsed
		}

		price, hasPrice := parseMoney(cellAt(row, priceIdx))
		currency := strings.ToUpper(cellAt(row, currencyIdx))

		sub := reports.Subscription{
			ExternalID:    externalID,
			ProductID:     cellAt(row, productIdx),
			Status:        enums.SubscriptionStatusActive,
			StartDate:     rowDate,
			PriceInterval: mapDuration(cellAt(row, durationIdx)),
			PriceCurrency: currency,
		}
		if hasPrice {
			sub.PriceAmount = price.Shift(2).IntPart()
		}
		if started, ok := parseReportDate(cellAt(row, startIdx)); ok {
			sub.StartDate = started
		}
		if expires, ok := parseReportDate(cellAt(row, expireIdx)); ok {
			if expires.Before(rowDate) {
				sub.Status = enums.SubscriptionStatusCanceled
				sub.EndDate = &expires
			}
		}
		if renew := cellAt(row, autoRenewIdx); renew != "" {
			switch strings.ToUpper(renew) {
			case "OFF", "0", "FALSE", "NO":
				sub.WillCancel = true
			}
		}
		batch.Subscriptions = append(batch.Subscriptions, sub)

		label := cellAt(row, eventIdx)
		if refund := cellAt(row, refundIdx); refund != "" && !strings.EqualFold(refund, "no") {
			label = "Refund"
		}
		if eventIdx < 0 && label == "" && !hasPrice {
			continue
		}

		result := classify.Classify(classify.Row{Label: label, Price: price})
		eventType, ok := classify.EventType(result)
		if !ok {
			continue
		}

		amount, err := p.convert(ctx, price.Mul(classify.RevenueSign(result)), currency, preferredCurrency, rowDate)
		if err != nil {
			return reports.Batch{}, err
		}
		event := reports.RevenueEvent{
			SubscriptionExternalID: externalID,
			Type:                   eventType,
			Amount:                 amount,
			Currency:               preferredCurrency,
			Country:                cellAt(row, countryIdx),
			OccurredAt:             rowDate,
		}
		if proceeds, ok := parseMoney(cellAt(row, proceedsIdx)); ok {
			converted, err := p.convert(ctx, proceeds.Mul(classify.RevenueSign(result)), currency, preferredCurrency, rowDate)
			if err != nil {
				return reports.Batch{}, err
			}
			event.AmountProceeds = decimal.NullDecimal{Decimal: converted, Valid: true}
		}
		batch.Events = append(batch.Events, event)
	}

	return batch, nil
}

func mapDuration(raw string) enums.PriceInterval {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(normalized, "year"):
		return enums.PriceIntervalYear
	case strings.Contains(normalized, "month"):
		return enums.PriceIntervalMonth
	default:
		return enums.PriceIntervalOther
	}
}
