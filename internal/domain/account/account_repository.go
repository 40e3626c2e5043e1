package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/common"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

var (
	_ Repository         = (*PostgresRepository)(nil)
	_ common.UserChecker = (*PostgresRepository)(nil)
)

// Repository reads users and toggles their soft-delete state. Rows themselves
// are provisioned by the identity provider.
type Repository interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	EnsureUser(ctx context.Context, userID uuid.UUID) error
	// Reactivate clears the soft-delete flag only when it is set.
	Reactivate(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

const (
	getUserQuery = `
		SELECT id, email, display_name, is_deleted, deleted_at, reactivated_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	ensureUserQuery  = `SELECT id FROM users WHERE id = $1`
	reactivateQuery  = `UPDATE users SET is_deleted = FALSE, deleted_at = NULL, reactivated_at = $1, updated_at = $1 WHERE id = $2 AND is_deleted = TRUE`
	usersTable       = "users"
	tracerRepository = "AccountRepository"
)

func startSpan(ctx context.Context, name, operation string, userID uuid.UUID) (context.Context, trace.Span) {
	return otel.Tracer(tracerRepository).Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", usersTable),
		attribute.String("db.operation", operation),
		attribute.String("db.user.id", userID.String()),
	))
}

func (r *PostgresRepository) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := startSpan(ctx, "GetUser", "SELECT", userID)
	defer span.End()

	l := r.logger.With(slog.String("method", "GetUser"), slog.String("userID", userID.String()))

	var (
		u           types.User
		displayName sql.NullString
		deletedAt   sql.NullTime
		reactivated sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getUserQuery, userID).Scan(
		&u.ID, &u.Email, &displayName, &u.IsDeleted, &deletedAt, &reactivated, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "user not found")
		return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to load user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error loading user: %w", err)
	}

	if displayName.Valid {
		u.DisplayName = &displayName.String
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	if reactivated.Valid {
		u.ReactivatedAt = &reactivated.Time
	}
	span.SetStatus(codes.Ok, "user loaded")
	return &u, nil
}

func (r *PostgresRepository) EnsureUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := startSpan(ctx, "EnsureUser", "SELECT", userID)
	defer span.End()

	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, ensureUserQuery, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check user", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return fmt.Errorf("database error checking user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Reactivate(ctx context.Context, userID uuid.UUID, at time.Time) error {
	ctx, span := startSpan(ctx, "Reactivate", "UPDATE", userID)
	defer span.End()

	n, err := r.exec(ctx, span, reactivateQuery, at, userID)
	if err != nil {
		return fmt.Errorf("database error reactivating user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reactivate %s: %w", userID, types.ErrAccountNotDeleted)
	}
	span.SetStatus(codes.Ok, "user reactivated")
	return nil
}

func (r *PostgresRepository) exec(ctx context.Context, span trace.Span, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "User update failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return n, nil
}
