package appstorereport

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/revlytic/revlytic-backend/internal/classify"
	"github.com/revlytic/revlytic-backend/internal/reports"
)

// ParseEvents handles the subscription event report, whose rows carry
// explicit event labels. Rows roll up into per-date flow aggregates, and
// rows tied to an identifiable subscription with a real charge also yield
// revenue events.
func (p *Parser) ParseEvents(ctx context.Context, raw []byte, preferredCurrency string) (reports.Batch, error) {
	header, rows := readTSV(raw)
	if header == nil {
		return reports.Batch{Diagnostics: []string{diagnostic("event", "empty or malformed file")}}, nil
	}

	dateIdx := findColumn(header, dateColumns)
	eventIdx := findColumn(header, eventColumns)
	if dateIdx < 0 || eventIdx < 0 {
		return reports.Batch{Diagnostics: []string{diagnostic("event", "no date or event column recognized")}}, nil
	}

	quantityIdx := findColumn(header, quantityColumns)
	priceIdx := findColumn(header, priceColumns)
	currencyIdx := findColumn(header, currencyColumns)
	countryIdx := findColumn(header, countryColumns)
	subIdx := findColumn(header, subscriptionIDColumns)

	batch := reports.Batch{FlowsReliable: true}
	daily := map[time.Time]*reports.DailyAggregate{}

	for _, row := range rows {
		day, ok := parseReportDate(cellAt(row, dateIdx))
		if !ok {
			continue
		}
		day = day.Truncate(24 * time.Hour)

		quantity := parseCount(cellAt(row, quantityIdx))
		if quantity <= 0 {
			quantity = 1
		}
		price, _ := parseMoney(cellAt(row, priceIdx))

		result := classify.Classify(classify.Row{Label: cellAt(row, eventIdx), Price: price})
		if result == classify.ResultNone {
			continue
		}

		agg, exists := daily[day]
		if !exists {
			agg = &reports.DailyAggregate{Date: day}
			daily[day] = agg
		}
		switch result {
		case classify.ResultFirstPayment:
			agg.New += quantity
		case classify.ResultRenewal:
			agg.Renewals += quantity
		case classify.ResultCancellation:
			agg.Canceled += quantity
		}

		eventType, ok := classify.EventType(result)
		if !ok {
			continue
		}
		externalID := cellAt(row, subIdx)
		if externalID == "" || price.IsZero() {
			continue
		}

		currency := strings.ToUpper(cellAt(row, currencyIdx))
		amount, err := p.convert(ctx, price.Mul(classify.RevenueSign(result)), currency, preferredCurrency, day)
		if err != nil {
			return reports.Batch{}, err
		}
		batch.Events = append(batch.Events, reports.RevenueEvent{
			SubscriptionExternalID: externalID,
			Type:                   eventType,
			Amount:                 amount,
			Currency:               preferredCurrency,
			Country:                cellAt(row, countryIdx),
			OccurredAt:             day,
		})
	}

	for _, agg := range daily {
		batch.Daily = append(batch.Daily, *agg)
	}
	sort.Slice(batch.Daily, func(i, j int) bool {
		return batch.Daily[i].Date.Before(batch.Daily[j].Date)
	})

	return batch, nil
}
