package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/common"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

var _ Service = (*ServiceImpl)(nil)

// PlanCatalog answers whether a plan id exists.
type PlanCatalog interface {
	Has(id string) bool
}

type Service interface {
	// Get returns the stored preferences or the defaults. It never writes.
	Get(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
	Update(ctx context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) error
}

type ServiceImpl struct {
	repo   Repository
	users  common.UserChecker
	plans  PlanCatalog
	logger *slog.Logger
}

func NewService(repo Repository, users common.UserChecker, plans PlanCatalog, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, users: users, plans: plans, logger: logger}
}

func (s *ServiceImpl) Get(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	ctx, span := otel.Tracer("PreferencesService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if err := s.users.EnsureUser(ctx, userID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	prefs, err := s.repo.Get(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		span.SetStatus(codes.Ok, "defaults")
		return types.DefaultPreferences(userID), nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch preferences", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("error fetching preferences: %w", err)
	}
	span.SetStatus(codes.Ok, "preferences fetched")
	return prefs, nil
}

func (s *ServiceImpl) Update(ctx context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) error {
	ctx, span := otel.Tracer("PreferencesService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Update"), slog.String("userID", userID.String()))

	if err := httpx.Validate(params); err != nil {
		return err
	}
	if params.SelectedPlanID != nil && s.plans != nil && !s.plans.Has(*params.SelectedPlanID) {
		return &httpx.ValidationError{Fields: map[string]string{"selected_plan_id": "unknown plan"}}
	}

	if err := s.users.EnsureUser(ctx, userID); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.repo.Upsert(ctx, userID, params); err != nil {
		l.ErrorContext(ctx, "Failed to update preferences", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return fmt.Errorf("error updating preferences: %w", err)
	}

	l.InfoContext(ctx, "Preferences updated")
	span.SetStatus(codes.Ok, "preferences updated")
	return nil
}
