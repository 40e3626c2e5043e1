package trial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/db"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.UserTrial, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool db.Querier
}

func NewRepository(pgpool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool}
}

const getTrialQuery = `
	SELECT user_id, trial_end_time, is_trial_used, created_at, updated_at
	FROM user_trials
	WHERE user_id = $1`

func (r *RepositoryImpl) Get(ctx context.Context, userID uuid.UUID) (*types.UserTrial, error) {
	ctx, span := otel.Tracer("TrialRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_trials"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	var t types.UserTrial
	err := r.pgpool.QueryRow(ctx, getTrialQuery, userID).
		Scan(&t.UserID, &t.TrialEndTime, &t.IsTrialUsed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "no trial")
		return nil, fmt.Errorf("trial for %s: %w", userID, types.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch trial", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching trial: %w", err)
	}
	span.SetStatus(codes.Ok, "trial fetched")
	return &t, nil
}
