// Package billing holds the subscription plan catalog and the price ID
// lookup used when a user picks a plan.
package billing

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var catalogYAML []byte

// ErrUnknownPlan is returned for an interval with no plan or no price ID.
var ErrUnknownPlan = errors.New("unknown plan type")

// Plan is one subscription offering.
type Plan struct {
	Name        string   `yaml:"name" json:"name"`
	Amount      float64  `yaml:"amount" json:"amount"`
	Currency    string   `yaml:"currency" json:"currency"`
	Interval    string   `yaml:"interval" json:"interval"`
	IsPopular   bool     `yaml:"isPopular" json:"isPopular,omitempty"`
	Description string   `yaml:"description" json:"description"`
	Features    []string `yaml:"features" json:"features"`
}

// Price formats the amount for display, e.g. "$9.99 / month".
func (p Plan) Price() string {
	symbol := p.Currency + " "
	if p.Currency == "USD" {
		symbol = "$"
	}
	return fmt.Sprintf("%s%.2f / %s", symbol, p.Amount, p.Interval)
}

// Catalog is the list of plans plus the payment provider price IDs.
type Catalog struct {
	plans    []Plan
	priceIDs map[string]string
}

// PriceIDs maps the plan interval to a payment provider price ID.
type PriceIDs struct {
	Weekly  string
	Monthly string
	Yearly  string
}

// NewCatalog loads the built-in plans.
func NewCatalog(prices PriceIDs) (*Catalog, error) {
	var plans []Plan
	if err := yaml.Unmarshal(catalogYAML, &plans); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	return &Catalog{
		plans: plans,
		priceIDs: map[string]string{
			"week":  prices.Weekly,
			"month": prices.Monthly,
			"year":  prices.Yearly,
		},
	}, nil
}

// Plans returns a copy of the catalog in display order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Plan returns the plan billed at interval.
func (c *Catalog) Plan(interval string) (Plan, bool) {
	for _, p := range c.plans {
		if p.Interval == interval {
			return p, true
		}
	}
	return Plan{}, false
}

// PriceIDFor returns the price ID for a plan type ("week", "month", "year").
func (c *Catalog) PriceIDFor(planType string) (string, error) {
	if _, ok := c.Plan(planType); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, planType)
	}
	id := c.priceIDs[planType]
	if id == "" {
		return "", fmt.Errorf("%w: no price configured for %q", ErrUnknownPlan, planType)
	}
	return id, nil
}
