package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/clock"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Reactivate(ctx context.Context, userID uuid.UUID) error
}

type ServiceImpl struct {
	repo   Repository
	now    clock.Clock
	logger *slog.Logger
}

func NewService(repo Repository, now clock.Clock, logger *slog.Logger) *ServiceImpl {
	if now == nil {
		now = clock.System
	}
	return &ServiceImpl{repo: repo, now: now, logger: logger}
}

// Reactivate restores a soft-deleted account. Unknown users surface as
// types.ErrNotFound and live accounts as types.ErrAccountNotDeleted.
func (s *ServiceImpl) Reactivate(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("AccountService").Start(ctx, "Reactivate", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Reactivate"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Reactivating account")

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return fmt.Errorf("error loading user: %w", err)
	}
	if !user.IsDeleted {
		span.SetStatus(codes.Error, "account not deleted")
		return types.ErrAccountNotDeleted
	}

	// The update is conditional, so a concurrent reactivation still ends in
	// ErrAccountNotDeleted rather than a second stamp.
	if err := s.repo.Reactivate(ctx, userID, s.now().UTC()); err != nil {
		l.ErrorContext(ctx, "Failed to reactivate account", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "reactivate failed")
		return fmt.Errorf("error reactivating account: %w", err)
	}

	l.InfoContext(ctx, "Account reactivated")
	span.SetStatus(codes.Ok, "account reactivated")
	return nil
}
