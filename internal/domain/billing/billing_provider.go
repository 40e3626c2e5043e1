package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

// Provider is the part of the billing provider's API the webhook needs.
type Provider interface {
	Subscription(ctx context.Context, id string) (*types.RemoteSubscription, error)
	Product(ctx context.Context, priceID string) (*types.ProductInfo, error)
	Cancel(ctx context.Context, id string) error
}

var _ Provider = (*StripeProvider)(nil)

type StripeProvider struct {
	api    *client.API
	logger *slog.Logger
}

func NewStripeProvider(secretKey string, logger *slog.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, logger: logger}
}

func (p *StripeProvider) Subscription(ctx context.Context, id string) (*types.RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, wrapStripeErr("retrieve subscription "+id, err)
	}
	return remoteSubscription(s), nil
}

func (p *StripeProvider) Product(ctx context.Context, priceID string) (*types.ProductInfo, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	params.AddExpand("product")
	price, err := p.api.Prices.Get(priceID, params)
	if err != nil {
		return nil, wrapStripeErr("retrieve price "+priceID, err)
	}

	info := &types.ProductInfo{PriceID: price.ID}
	if price.Product == nil {
		return info, nil
	}
	info.ProductID = price.Product.ID
	info.ProductName = price.Product.Name
	if info.ProductName == "" && info.ProductID != "" {
		pp := &stripe.ProductParams{}
		pp.Context = ctx
		product, err := p.api.Products.Get(info.ProductID, pp)
		if err != nil {
			return nil, wrapStripeErr("retrieve product "+info.ProductID, err)
		}
		info.ProductName = product.Name
	}
	return info, nil
}

func (p *StripeProvider) Cancel(ctx context.Context, id string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := p.api.Subscriptions.Cancel(id, params); err != nil {
		return wrapStripeErr("cancel subscription "+id, err)
	}
	p.logger.InfoContext(ctx, "Canceled subscription upstream", slog.String("subscriptionID", id))
	return nil
}

func wrapStripeErr(op string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// remoteSubscription flattens a provider subscription. The price comes from
// the first item.
func remoteSubscription(s *stripe.Subscription) *types.RemoteSubscription {
	out := &types.RemoteSubscription{
		ID:                s.ID,
		Status:            types.SubscriptionStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		out.PriceID = s.Items.Data[0].Price.ID
	}
	if s.CurrentPeriodEnd > 0 {
		end := time.Unix(s.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	return out
}
