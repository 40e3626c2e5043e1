package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// LiveIndex is the partial unique index allowing one live subscription per user.
const LiveIndex = "subscriptions_one_live_per_user"

// Repository persists subscriptions keyed by the provider subscription id.
type Repository interface {
	// Latest returns the newest subscription for a user among statuses, or
	// among all statuses when none are given.
	Latest(ctx context.Context, userID uuid.UUID, statuses ...types.SubscriptionStatus) (*types.Subscription, error)
	// LiveByCustomer returns the newest active or trialing subscription of a provider customer.
	LiveByCustomer(ctx context.Context, customerID string) (*types.Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (*types.Subscription, error)
	Create(ctx context.Context, params types.CreateSubscriptionParams) (*types.Subscription, error)
	// UpdateByExternalID applies the non-nil fields and reports whether a row matched.
	UpdateByExternalID(ctx context.Context, externalID string, params types.UpdateSubscriptionParams) (bool, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool db.Querier
	now    func() time.Time
}

func NewRepository(pgpool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool, now: time.Now}
}

var columns = []string{
	"id", "user_id", "stripe_customer_id", "stripe_subscription_id", "status",
	"price_id", "product_name", "product_id", "current_period_end",
	"cancel_at_period_end", "created_at", "updated_at",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("db.operation", operation),
	}
	return otel.Tracer("SubscriptionRepo").Start(ctx, name, trace.WithAttributes(append(base, attrs...)...))
}

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var (
		s      types.Subscription
		status string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.StripeCustomerID, &s.StripeSubscriptionID, &status,
		&s.PriceID, &s.ProductName, &s.ProductID, &s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = types.SubscriptionStatus(status)
	return &s, nil
}

func statusStrings(statuses []types.SubscriptionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *RepositoryImpl) queryOne(ctx context.Context, span trace.Span, l *slog.Logger, q squirrel.SelectBuilder) (*types.Subscription, error) {
	query, args, err := q.ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build subscription query: %w", err)
	}

	sub, err := scanSubscription(r.pgpool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "no subscription")
		return nil, fmt.Errorf("subscription: %w", types.ErrNotFound)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to query subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching subscription: %w", err)
	}
	span.SetStatus(codes.Ok, "subscription found")
	return sub, nil
}

func (r *RepositoryImpl) Latest(ctx context.Context, userID uuid.UUID, statuses ...types.SubscriptionStatus) (*types.Subscription, error) {
	ctx, span := startSpan(ctx, "Latest", "SELECT", attribute.String("db.user.id", userID.String()))
	defer span.End()

	l := r.logger.With(slog.String("method", "Latest"), slog.String("userID", userID.String()))

	q := psql.Select(columns...).
		From("subscriptions").
		Where(squirrel.Eq{"user_id": userID.String()}).
		OrderBy("created_at DESC").
		Limit(1)
	if len(statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": statusStrings(statuses)})
	}
	return r.queryOne(ctx, span, l, q)
}

func (r *RepositoryImpl) LiveByCustomer(ctx context.Context, customerID string) (*types.Subscription, error) {
	ctx, span := startSpan(ctx, "LiveByCustomer", "SELECT", attribute.String("billing.customer.id", customerID))
	defer span.End()

	l := r.logger.With(slog.String("method", "LiveByCustomer"), slog.String("customerID", customerID))

	q := psql.Select(columns...).
		From("subscriptions").
		Where(squirrel.Eq{"stripe_customer_id": customerID}).
		Where(squirrel.Eq{"status": statusStrings(types.LiveStatuses)}).
		OrderBy("created_at DESC").
		Limit(1)
	return r.queryOne(ctx, span, l, q)
}

func (r *RepositoryImpl) GetByExternalID(ctx context.Context, externalID string) (*types.Subscription, error) {
	ctx, span := startSpan(ctx, "GetByExternalID", "SELECT", attribute.String("billing.subscription.id", externalID))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetByExternalID"), slog.String("subscriptionID", externalID))

	q := psql.Select(columns...).
		From("subscriptions").
		Where(squirrel.Eq{"stripe_subscription_id": externalID})
	return r.queryOne(ctx, span, l, q)
}

// Create inserts a subscription. A second live subscription for the same user
// violates LiveIndex and is reported as types.ErrDuplicateSubscription.
func (r *RepositoryImpl) Create(ctx context.Context, p types.CreateSubscriptionParams) (*types.Subscription, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT",
		attribute.String("db.user.id", p.UserID.String()),
		attribute.String("billing.subscription.id", p.StripeSubscriptionID),
	)
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("userID", p.UserID.String()),
		slog.String("subscriptionID", p.StripeSubscriptionID))
	l.DebugContext(ctx, "Inserting subscription")

	now := r.now().UTC()
	query, args, err := psql.Insert("subscriptions").
		Columns("user_id", "stripe_customer_id", "stripe_subscription_id", "status",
			"price_id", "product_name", "product_id", "current_period_end",
			"cancel_at_period_end", "created_at", "updated_at").
		Values(p.UserID, p.StripeCustomerID, p.StripeSubscriptionID, string(p.Status),
			p.PriceID, p.ProductName, p.ProductID, p.CurrentPeriodEnd,
			p.CancelAtPeriodEnd, now, now).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build subscription insert: %w", err)
	}

	sub := &types.Subscription{
		UserID:               p.UserID,
		StripeCustomerID:     p.StripeCustomerID,
		StripeSubscriptionID: p.StripeSubscriptionID,
		Status:               p.Status,
		PriceID:              p.PriceID,
		ProductName:          p.ProductName,
		ProductID:            p.ProductID,
		CurrentPeriodEnd:     p.CurrentPeriodEnd,
		CancelAtPeriodEnd:    p.CancelAtPeriodEnd,
	}
	err = r.pgpool.QueryRow(ctx, query, args...).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if db.IsUniqueViolation(err, LiveIndex) {
		l.WarnContext(ctx, "Live subscription already exists for user")
		span.SetStatus(codes.Error, "duplicate live subscription")
		return nil, fmt.Errorf("insert subscription: %w", types.ErrDuplicateSubscription)
	}
	if db.IsUniqueViolation(err, "") {
		span.SetStatus(codes.Error, "subscription exists")
		return nil, fmt.Errorf("insert subscription: %w", types.ErrConflict)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error inserting subscription: %w", err)
	}

	l.InfoContext(ctx, "Subscription created", slog.String("status", string(p.Status)))
	span.SetStatus(codes.Ok, "subscription created")
	return sub, nil
}

func (r *RepositoryImpl) UpdateByExternalID(ctx context.Context, externalID string, p types.UpdateSubscriptionParams) (bool, error) {
	ctx, span := startSpan(ctx, "UpdateByExternalID", "UPDATE", attribute.String("billing.subscription.id", externalID))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateByExternalID"), slog.String("subscriptionID", externalID))

	updateBuilder := psql.Update("subscriptions").
		Set("updated_at", r.now().UTC()).
		Where(squirrel.Eq{"stripe_subscription_id": externalID})

	if p.Status != nil {
		updateBuilder = updateBuilder.Set("status", string(*p.Status))
	}
	if p.PriceID != nil {
		updateBuilder = updateBuilder.Set("price_id", *p.PriceID)
	}
	if p.ProductName != nil {
		updateBuilder = updateBuilder.Set("product_name", *p.ProductName)
	}
	if p.ProductID != nil {
		updateBuilder = updateBuilder.Set("product_id", *p.ProductID)
	}
	if p.CurrentPeriodEnd != nil {
		updateBuilder = updateBuilder.Set("current_period_end", p.CurrentPeriodEnd.UTC())
	}
	if p.CancelAtPeriodEnd != nil {
		updateBuilder = updateBuilder.Set("cancel_at_period_end", *p.CancelAtPeriodEnd)
	}

	query, args, err := updateBuilder.ToSql()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("build subscription update: %w", err)
	}

	tag, err := r.pgpool.Exec(ctx, query, args...)
	if db.IsUniqueViolation(err, LiveIndex) {
		span.SetStatus(codes.Error, "duplicate live subscription")
		return false, fmt.Errorf("update subscription: %w", types.ErrDuplicateSubscription)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to update subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return false, fmt.Errorf("database error updating subscription: %w", err)
	}

	matched := tag.RowsAffected() > 0
	l.DebugContext(ctx, "Subscription updated", slog.Bool("matched", matched))
	span.SetStatus(codes.Ok, "subscription updated")
	return matched, nil
}
