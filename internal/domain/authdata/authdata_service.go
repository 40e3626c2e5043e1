// Package authdata serves the batched subscription and onboarding view a
// client needs to decide where a signed-in user belongs.
package authdata

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
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/common"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Subscriptions interface {
	Latest(ctx context.Context, userID uuid.UUID, statuses ...types.SubscriptionStatus) (*types.Subscription, error)
}

type Preferences interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
	EnsureDefault(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
}

type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.AuthDataPayload, error)
}

type ServiceImpl struct {
	subs   Subscriptions
	prefs  Preferences
	users  common.UserChecker
	logger *slog.Logger
}

func NewService(subs Subscriptions, prefs Preferences, users common.UserChecker, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{subs: subs, prefs: prefs, users: users, logger: logger}
}

func (s *ServiceImpl) Get(ctx context.Context, userID uuid.UUID) (*types.AuthDataPayload, error) {
	ctx, span := otel.Tracer("AuthDataService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Get"), slog.String("userID", userID.String()))

	if err := s.users.EnsureUser(ctx, userID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var (
		sub   *types.Subscription
		prefs *types.UserPreferences
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.subs.Latest(gctx, userID, types.SubscriptionActive)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch subscription: %w", err)
		}
		sub = found
		return nil
	})
	g.Go(func() error {
		found, err := s.prefs.Get(gctx, userID)
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch preferences: %w", err)
		}
		prefs = found
		return nil
	})
	if err := g.Wait(); err != nil {
		l.ErrorContext(ctx, "Auth data fetch error", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	if prefs == nil {
		created, err := s.prefs.EnsureDefault(ctx, userID)
		if err != nil {
			// The caller still gets defaults; the row is retried on the next request.
			l.WarnContext(ctx, "Failed to create default preferences", slog.Any("error", err))
			created = types.DefaultPreferences(userID)
		} else {
			l.InfoContext(ctx, "Created default preferences")
		}
		prefs = created
	}

	isSubscriber := sub != nil && sub.Status == types.SubscriptionActive
	step := prefs.OnboardingStep
	if step == 0 {
		step = types.DefaultOnboardingStep
	}

	span.SetStatus(codes.Ok, "auth data resolved")
	return &types.AuthDataPayload{
		IsSubscriber:               isSubscriber,
		Subscription:               sub,
		HasCompletedOnboarding:     prefs.HasCompletedOnboarding,
		OnboardingStep:             step,
		SelectedPlanID:             prefs.SelectedPlanID,
		OnboardingCompletedAt:      prefs.OnboardingCompletedAt,
		ShouldRedirectToOnboarding: !isSubscriber,
		ShouldRedirectToDashboard:  isSubscriber,
	}, nil
}
