// Package pricing holds the plan catalogue shown during onboarding and
// upgrades.
package pricing

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

//go:embed plans.toml
var embeddedPlans []byte

type Tier struct {
	ID          string   `toml:"id" json:"id"`
	Name        string   `toml:"name" json:"name"`
	Price       string   `toml:"price" json:"price"`
	Interval    string   `toml:"interval" json:"interval"`
	Description string   `toml:"description" json:"description"`
	Features    []string `toml:"features" json:"features"`
	Popular     bool     `toml:"popular" json:"popular"`
	PriceID     string   `toml:"price_id" json:"priceId,omitempty"`
	PaymentLink string   `toml:"payment_link" json:"stripePaymentLink,omitempty"`
	CTA         string   `toml:"cta" json:"cta"`
}

// UpgradeTier is a purchasable tier flagged against the caller's plan.
type UpgradeTier struct {
	Tier
	Current bool `json:"current"`
}

type document struct {
	Tiers []Tier `toml:"tiers"`
}

// Catalogue is immutable after construction.
type Catalogue struct {
	tiers []Tier
	byID  map[string]int
}

// Options fill provider references per plan id.
type Options struct {
	File         string
	PriceIDs     map[string]string
	PaymentLinks map[string]string
}

// Load decodes the embedded catalogue, or opts.File when set.
func Load(opts Options) (*Catalogue, error) {
	data := embeddedPlans
	if opts.File != "" {
		b, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("read plans %s: %w", opts.File, err)
		}
		data = b
	}
	return Parse(data, opts)
}

func Parse(data []byte, opts Options) (*Catalogue, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	if len(doc.Tiers) == 0 {
		return nil, errors.New("plans catalogue is empty")
	}

	c := &Catalogue{byID: make(map[string]int, len(doc.Tiers))}
	for _, t := range doc.Tiers {
		if t.ID == "" {
			return nil, errors.New("plan without id")
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate plan %q", t.ID)
		}
		if id := opts.PriceIDs[t.ID]; id != "" {
			t.PriceID = id
		}
		if link := opts.PaymentLinks[t.ID]; link != "" {
			t.PaymentLink = link
		}
		c.byID[t.ID] = len(c.tiers)
		c.tiers = append(c.tiers, t)
	}
	return c, nil
}

func (c *Catalogue) Get(id string) (Tier, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Tier{}, false
	}
	return c.tiers[i], true
}

func (c *Catalogue) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns a copy in catalogue order.
func (c *Catalogue) All() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Upgradeable lists tiers that can be bought through the provider.
func (c *Catalogue) Upgradeable(current string) []UpgradeTier {
	var out []UpgradeTier
	for _, t := range c.tiers {
		if t.PriceID == "" {
			continue
		}
		out = append(out, UpgradeTier{Tier: t, Current: t.ID == current})
	}
	return out
}

type Handler struct {
	catalogue *Catalogue
	logger    *slog.Logger
}

func NewHandler(catalogue *Catalogue, logger *slog.Logger) *Handler {
	return &Handler{catalogue: catalogue, logger: logger}
}

type listResponse struct {
	Tiers []Tier `json:"tiers"`
}

type upgradeResponse struct {
	Tiers []UpgradeTier `json:"tiers"`
}

// List answers GET /api/pricing. With ?current=<plan> it returns the upgrade
// view instead.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if current, ok := r.URL.Query()["current"]; ok {
		tiers := h.catalogue.Upgradeable(current[0])
		if tiers == nil {
			tiers = []UpgradeTier{}
		}
		httpx.WriteJSON(w, http.StatusOK, upgradeResponse{Tiers: tiers})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Tiers: h.catalogue.All()})
}
