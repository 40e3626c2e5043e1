package subscription

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

type Service interface {
	Status(ctx context.Context, userID uuid.UUID) (*types.SubscriptionStatusResponse, error)
}

type ServiceImpl struct {
	repo   Repository
	users  common.UserChecker
	now    clock.Clock
	logger *slog.Logger
}

func NewService(repo Repository, users common.UserChecker, now clock.Clock, logger *slog.Logger) *ServiceImpl {
	if now == nil {
		now = clock.System
	}
	return &ServiceImpl{repo: repo, users: users, now: now, logger: logger}
}

// Status returns the user's newest live subscription. The subscription counts
// as valid only while its current period has not ended.
func (s *ServiceImpl) Status(ctx context.Context, userID uuid.UUID) (*types.SubscriptionStatusResponse, error) {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "Status", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Status"), slog.String("userID", userID.String()))

	if err := s.users.EnsureUser(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user check failed")
		return nil, err
	}

	sub, err := s.repo.Latest(ctx, userID, types.LiveStatuses...)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		l.ErrorContext(ctx, "Failed to fetch subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscription lookup failed")
		return nil, fmt.Errorf("error fetching subscription: %w", err)
	}

	valid := sub.IsValid(s.now())
	l.DebugContext(ctx, "Subscription status resolved", slog.Bool("valid", valid))
	span.SetStatus(codes.Ok, "subscription status resolved")
	return &types.SubscriptionStatusResponse{
		Subscription: sub,
		IsSubscriber: valid,
		IsValid:      valid,
	}, nil
}
