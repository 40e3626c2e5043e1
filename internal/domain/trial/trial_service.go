package trial

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
	"github.com/FACorreiaa/rocketstart-api/pkg/clock"
)

var _ Service = (*ServiceImpl)(nil)

// ErrLookup marks a failed trial read, reported separately from other failures.
var ErrLookup = errors.New("trial lookup failed")

// Subscriptions is the slice of the subscription store the trial view needs.
type Subscriptions interface {
	Latest(ctx context.Context, userID uuid.UUID, statuses ...types.SubscriptionStatus) (*types.Subscription, error)
}

type Service interface {
	Status(ctx context.Context, userID uuid.UUID) (*types.TrialStatus, error)
}

type ServiceImpl struct {
	trials Repository
	subs   Subscriptions
	users  common.UserChecker
	now    clock.Clock
	logger *slog.Logger
}

func NewService(trials Repository, subs Subscriptions, users common.UserChecker, now clock.Clock, logger *slog.Logger) *ServiceImpl {
	if now == nil {
		now = clock.System
	}
	return &ServiceImpl{trials: trials, subs: subs, users: users, now: now, logger: logger}
}

func (s *ServiceImpl) Status(ctx context.Context, userID uuid.UUID) (*types.TrialStatus, error) {
	ctx, span := otel.Tracer("TrialService").Start(ctx, "Status", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Status"), slog.String("userID", userID.String()))

	if err := s.users.EnsureUser(ctx, userID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := &types.TrialStatus{}

	// The newest subscription of any status.
	sub, err := s.subs.Latest(ctx, userID)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		l.ErrorContext(ctx, "Failed to fetch subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscription lookup failed")
		return nil, fmt.Errorf("error fetching subscription: %w", err)
	default:
		out.Subscription = &types.SubscriptionStatusRef{Status: sub.Status}
		out.HasActiveSubscription = sub.Status == types.SubscriptionActive
	}

	trial, err := s.trials.Get(ctx, userID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		trial = nil
	case err != nil:
		l.ErrorContext(ctx, "Error fetching trial status", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "trial lookup failed")
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}

	now := s.now()
	out.Trial = trial
	if trial != nil {
		out.IsTrialUsed = trial.IsTrialUsed
		out.TrialEndTime = trial.TrialEndTime
		if trial.TrialEndTime != nil {
			out.IsTrialActive = now.Before(*trial.TrialEndTime)
			out.IsTrialExpired = !out.IsTrialActive
		}
	}

	hasLive := out.Subscription != nil && out.Subscription.Status.IsLive()
	switch {
	case hasLive:
		out.IsInTrial = false
	case trial == nil:
		out.IsInTrial = true
	default:
		out.IsInTrial = !trial.IsTrialUsed && out.IsTrialActive
	}

	span.SetStatus(codes.Ok, "trial status resolved")
	return out, nil
}
