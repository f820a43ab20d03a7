package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Service persists parser batches. Subscriptions are created on first
// sighting and refreshed in place afterwards; revenue events deduplicate
// on (subscription, occurred-at, amount) and may only ever be enriched
// with a previously-missing proceeds figure, never overwritten.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// ServiceParams wires the service's dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// NewService validates dependencies and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ingest repo required")
	}
	return &Service{repo: params.Repo, logger: params.Logger}, nil
}

// Result summarizes one ingestion call for sync logging.
type Result struct {
	SubscriptionsCreated int
	SubscriptionsUpdated int
	EventsStored         int
	DuplicatesSkipped    int
	ProceedsFilled       int
	EventsOrphaned       int
}

// IngestBatch stores a normalized batch for one app and platform.
func (s *Service) IngestBatch(ctx context.Context, appID uuid.UUID, platform enums.Platform, batch reports.Batch) (Result, error) {
	var result Result

	byExternalID := map[string]uuid.UUID{}
	for _, normalized := range batch.Subscriptions {
		stored, created, err := s.upsertSubscription(ctx, appID, platform, normalized)
		if err != nil {
			return result, err
		}
		byExternalID[normalized.ExternalID] = stored.ID
		if created {
			result.SubscriptionsCreated++
		} else {
			result.SubscriptionsUpdated++
		}
	}

	for _, event := range batch.Events {
		subscriptionID, ok := byExternalID[event.SubscriptionExternalID]
		if !ok {
			stored, err := s.repo.FindSubscription(ctx, appID, platform, event.SubscriptionExternalID)
			if err != nil {
				return result, err
			}
			if stored == nil {
				result.EventsOrphaned++
				continue
			}
			subscriptionID = stored.ID
			byExternalID[event.SubscriptionExternalID] = subscriptionID
		}

		outcome, err := s.ingestEvent(ctx, appID, platform, subscriptionID, event)
		if err != nil {
			return result, err
		}
		switch outcome {
		case eventStored:
			result.EventsStored++
		case eventDuplicate:
			result.DuplicatesSkipped++
		case eventEnriched:
			result.ProceedsFilled++
		}
	}

	return result, nil
}

func (s *Service) upsertSubscription(ctx context.Context, appID uuid.UUID, platform enums.Platform, normalized reports.Subscription) (*models.Subscription, bool, error) {
	stored, err := s.repo.FindSubscription(ctx, appID, platform, normalized.ExternalID)
	if err != nil {
		return nil, false, err
	}

	if stored == nil {
		sub := &models.Subscription{
			ID:            uuid.New(),
			AppID:         appID,
			Platform:      platform,
			ExternalID:    normalized.ExternalID,
			CustomerID:    optionalString(normalized.CustomerID),
			Status:        normalized.Status,
			ProductID:     normalized.ProductID,
			StartDate:     normalized.StartDate,
			EndDate:       normalized.EndDate,
			IsTrial:       normalized.IsTrial,
			WillCancel:    normalized.WillCancel,
			TrialEnd:      normalized.TrialEnd,
			PriceAmount:   normalized.PriceAmount,
			PriceInterval: normalized.PriceInterval,
			PriceCurrency: normalized.PriceCurrency,
		}
		if sub.PriceInterval == "" {
			sub.PriceInterval = enums.PriceIntervalOther
		}
		if sub.PriceCurrency == "" {
			sub.PriceCurrency = "USD"
		}
		if err := s.repo.CreateSubscription(ctx, sub); err != nil {
			return nil, false, err
		}
		return sub, true, nil
	}

	stored.Status = normalized.Status
	stored.WillCancel = normalized.WillCancel
	stored.IsTrial = normalized.IsTrial
	if normalized.CustomerID != "" {
		stored.CustomerID = optionalString(normalized.CustomerID)
	}
	if normalized.ProductID != "" {
		stored.ProductID = normalized.ProductID
	}
	if !normalized.StartDate.IsZero() {
		stored.StartDate = normalized.StartDate
	}
	stored.EndDate = normalized.EndDate
	if normalized.TrialEnd != nil {
		stored.TrialEnd = normalized.TrialEnd
	}
	if normalized.PriceAmount > 0 {
		stored.PriceAmount = normalized.PriceAmount
	}
	if normalized.PriceInterval != "" && normalized.PriceInterval != enums.PriceIntervalOther {
		stored.PriceInterval = normalized.PriceInterval
	}
	if normalized.PriceCurrency != "" {
		stored.PriceCurrency = normalized.PriceCurrency
	}
	if err := s.repo.UpdateSubscription(ctx, stored); err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

type eventOutcome int

const (
	eventStored eventOutcome = iota
	eventDuplicate
	eventEnriched
)

func (s *Service) ingestEvent(ctx context.Context, appID uuid.UUID, platform enums.Platform, subscriptionID uuid.UUID, event reports.RevenueEvent) (eventOutcome, error) {
	existing, err := s.repo.FindEvent(ctx, subscriptionID, event.OccurredAt, event.Amount)
	if err != nil {
		return eventDuplicate, err
	}

	if existing != nil {
		if !existing.AmountProceeds.Valid && event.AmountProceeds.Valid {
			existing.AmountProceeds = event.AmountProceeds
			if err := s.repo.UpdateEvent(ctx, existing); err != nil {
				return eventDuplicate, err
			}
			return eventEnriched, nil
		}
		return eventDuplicate, nil
	}

	stored := &models.RevenueEvent{
		ID:                 uuid.New(),
		AppID:              appID,
		Platform:           platform,
		SubscriptionID:     subscriptionID,
		EventType:          event.Type,
		Amount:             event.Amount,
		AmountExcludingTax: event.AmountExcludingTax,
		AmountProceeds:     event.AmountProceeds,
		Currency:           event.Currency,
		Country:            optionalString(event.Country),
		OccurredAt:         event.OccurredAt,
		ExternalID:         optionalString(event.ExternalID),
	}
	if err := s.repo.CreateEvent(ctx, stored); err != nil {
		return eventDuplicate, err
	}
	return eventStored, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
