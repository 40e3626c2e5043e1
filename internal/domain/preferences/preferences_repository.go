package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
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
	Get(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
	// Upsert writes the non-nil fields, creating the row with defaults if needed.
	Upsert(ctx context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) error
	// EnsureDefault returns the stored row, inserting the default row first if absent.
	EnsureDefault(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool db.Querier
	now    func() time.Time
}

func NewRepository(pgpool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool, now: time.Now}
}

const selectColumns = "user_id, has_completed_onboarding, onboarding_step, selected_plan_id, onboarding_completed_at, created_at, updated_at"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func startSpan(ctx context.Context, name, operation string, userID uuid.UUID) (context.Context, trace.Span) {
	return otel.Tracer("PreferencesRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_preferences"),
		attribute.String("db.operation", operation),
		attribute.String("db.user.id", userID.String()),
	))
}

func scanPreferences(row pgx.Row) (*types.UserPreferences, error) {
	var p types.UserPreferences
	err := row.Scan(&p.UserID, &p.HasCompletedOnboarding, &p.OnboardingStep, &p.SelectedPlanID,
		&p.OnboardingCompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	ctx, span := startSpan(ctx, "Get", "SELECT", userID)
	defer span.End()

	query := `SELECT ` + selectColumns + ` FROM user_preferences WHERE user_id = $1`
	p, err := scanPreferences(r.pgpool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "no preferences")
		return nil, fmt.Errorf("preferences for %s: %w", userID, types.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch preferences", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching preferences: %w", err)
	}
	span.SetStatus(codes.Ok, "preferences fetched")
	return p, nil
}

func (r *RepositoryImpl) Upsert(ctx context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) error {
	ctx, span := startSpan(ctx, "Upsert", "INSERT", userID)
	defer span.End()

	l := r.logger.With(slog.String("method", "Upsert"), slog.String("userID", userID.String()))

	now := r.now().UTC()
	cols := []string{"user_id", "updated_at"}
	vals := []any{userID, now}
	add := func(col string, v any) {
		cols = append(cols, col)
		vals = append(vals, v)
	}
	if params.HasCompletedOnboarding != nil {
		add("has_completed_onboarding", *params.HasCompletedOnboarding)
	}
	if params.OnboardingStep != nil {
		add("onboarding_step", *params.OnboardingStep)
	}
	if params.SelectedPlanID != nil {
		add("selected_plan_id", *params.SelectedPlanID)
	}
	if params.OnboardingCompletedAt != nil {
		add("onboarding_completed_at", params.OnboardingCompletedAt.UTC())
	}

	// Every written column except the key is overwritten on conflict.
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, c+" = EXCLUDED."+c)
	}

	query, args, err := psql.Insert("user_preferences").
		Columns(cols...).
		Values(vals...).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET " + strings.Join(sets, ", ")).
		ToSql()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("build preferences upsert: %w", err)
	}

	if _, err := r.pgpool.Exec(ctx, query, args...); err != nil {
		l.ErrorContext(ctx, "Failed to upsert preferences", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB upsert failed")
		return fmt.Errorf("database error upserting preferences: %w", err)
	}

	l.DebugContext(ctx, "Preferences upserted", slog.Int("fields", len(cols)-2))
	span.SetStatus(codes.Ok, "preferences upserted")
	return nil
}

func (r *RepositoryImpl) EnsureDefault(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	ctx, span := startSpan(ctx, "EnsureDefault", "INSERT", userID)
	defer span.End()

	query := `INSERT INTO user_preferences (user_id, has_completed_onboarding, onboarding_step)
		VALUES ($1, FALSE, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + selectColumns

	p, err := scanPreferences(r.pgpool.QueryRow(ctx, query, userID, types.DefaultOnboardingStep))
	if errors.Is(err, pgx.ErrNoRows) {
		// Someone else created the row first.
		return r.Get(ctx, userID)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create default preferences", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error creating preferences: %w", err)
	}
	span.SetStatus(codes.Ok, "default preferences created")
	return p, nil
}
