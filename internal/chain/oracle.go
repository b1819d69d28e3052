package chain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceOracle returns the unit-of-account price of the chain's native
// asset at a point in time. Journal balancing uses it to convert
// native-denominated residuals.
type PriceOracle interface {
	PriceAt(ctx context.Context, ts time.Time) (decimal.Decimal, error)
}

// StaticPriceOracle returns a fixed reference price. Useful for tests
// and for backfills where a single valuation date applies.
type StaticPriceOracle struct {
	price decimal.Decimal
}

// NewStaticPriceOracle creates an oracle that always returns price.
func NewStaticPriceOracle(price decimal.Decimal) *StaticPriceOracle {
	return &StaticPriceOracle{price: price}
}

// PriceAt returns the configured price regardless of timestamp.
func (o *StaticPriceOracle) PriceAt(_ context.Context, _ time.Time) (decimal.Decimal, error) {
	return o.price, nil
}
