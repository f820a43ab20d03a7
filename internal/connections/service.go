package connections

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Service manages apps and their platform connections.
type Service struct {
	repo   Repository
	logger *logger.Logger
	now    func() time.Time
}

// ServiceParams wires the service's dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// NewService validates dependencies and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "connections repo required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, logger: params.Logger, now: now}, nil
}

// CreateAppInput carries the fields needed to register an app.
type CreateAppInput struct {
	Name              string `json:"name" validate:"required,min=1,max=200"`
	PreferredCurrency string `json:"preferred_currency" validate:"omitempty,len=3"`
}

// CreateApp registers a new app tenant.
func (s *Service) CreateApp(ctx context.Context, input CreateAppInput) (*models.App, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "app name is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.PreferredCurrency))
	if currency == "" {
		currency = "USD"
	}

	app := &models.App{ID: uuid.New(), Name: name, PreferredCurrency: currency}
	if err := s.repo.CreateApp(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// GetApp loads one app.
func (s *Service) GetApp(ctx context.Context, id uuid.UUID) (*models.App, error) {
	app, err := s.repo.FindApp(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "app not found")
	}
	return app, nil
}

// ListApps returns every registered app.
func (s *Service) ListApps(ctx context.Context) ([]models.App, error) {
	return s.repo.ListApps(ctx)
}

// ConnectInput carries a platform connection request.
type ConnectInput struct {
	Platform    enums.Platform  `json:"platform" validate:"required"`
	Credentials json.RawMessage `json:"credentials" validate:"required"`
}

// Connect validates the credential payload and creates or replaces the
// app's connection for the platform. Replacing credentials resets the
// connection to connected; sync history is left untouched.
func (s *Service) Connect(ctx context.Context, appID uuid.UUID, input ConnectInput) (*models.Connection, error) {
	if !input.Platform.IsSource() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform must be one of the source platforms")
	}
	app, err := s.repo.FindApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "app not found")
	}
	if err := ValidateCredentials(input.Platform, input.Credentials); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindConnection(ctx, appID, input.Platform)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Credentials = input.Credentials
		existing.Status = enums.ConnectionStatusConnected
		if err := s.repo.UpdateConnection(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	conn := &models.Connection{
		ID:          uuid.New(),
		AppID:       appID,
		Platform:    input.Platform,
		Status:      enums.ConnectionStatusConnected,
		Credentials: input.Credentials,
	}
	if err := s.repo.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Disconnect removes a platform connection. Billing data stays.
func (s *Service) Disconnect(ctx context.Context, appID uuid.UUID, platform enums.Platform) error {
	conn, err := s.repo.FindConnection(ctx, appID, platform)
	if err != nil {
		return err
	}
	if conn == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "connection not found")
	}
	return s.repo.DeleteConnection(ctx, conn.ID)
}

// ListConnections returns an app's connections.
func (s *Service) ListConnections(ctx context.Context, appID uuid.UUID) ([]models.Connection, error) {
	return s.repo.ListConnections(ctx, appID)
}

// MarkSynced stamps a connection after a successful sync.
func (s *Service) MarkSynced(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := s.repo.FindConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "connection not found")
	}
	TouchLastSynced(conn, s.now())
	conn.Status = enums.ConnectionStatusConnected
	return s.repo.UpdateConnection(ctx, conn)
}

// MarkErrored flags a connection whose platform rejected its credentials.
func (s *Service) MarkErrored(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := s.repo.FindConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "connection not found")
	}
	conn.Status = enums.ConnectionStatusError
	return s.repo.UpdateConnection(ctx, conn)
}
