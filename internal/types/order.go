package types

import (
	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

// OrderRequest is a single buy or sell instruction for the executor.
// Price must already be converted to the base currency by the caller;
// the executor is currency-agnostic.
type OrderRequest struct {
	UID       string    `json:"uid" yaml:"uid" validate:"required"`
	Symbol    string    `json:"symbol" yaml:"symbol" validate:"required"`
	Name      string    `json:"name" yaml:"name"`
	Price     float64   `json:"price" yaml:"price" validate:"required,gt=0"`
	Quantity  int64     `json:"quantity" yaml:"quantity" validate:"required,gt=0"`
	OrderType OrderType `json:"order_type" yaml:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Market    string    `json:"market" yaml:"market"`
}

// Validate validates the OrderRequest struct.
func (r *OrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		if r.Quantity <= 0 {
			return errors.Wrap(errors.ErrCodeInvalidQuantity, "quantity must be positive", err)
		}

		if r.Price <= 0 {
			return errors.Wrap(errors.ErrCodeInvalidPrice, "price must be positive", err)
		}

		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	return nil
}
