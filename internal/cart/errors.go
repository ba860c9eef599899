package cart

import (
	"errors"
	"fmt"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrCartIsEmpty  = errors.New("cart is empty")
	// ErrOwnerHasCart is returned when a new cart races an existing cart for
	// the same owner.
	ErrOwnerHasCart = errors.New("owner already has a cart")
)

// Field error codes reported in a ValidationError.
const (
	CodeOutOfRange = "out_of_range"
	CodeNotAnInt   = "not_an_int"
	CodeRequired   = "required"
)

// ValidationError reports a rejected field of a cart mutation.
type ValidationError struct {
	Field string
	Code  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Code)
}

// NotFoundError names a referenced entity that does not exist. The value is
// the client-facing error code.
type NotFoundError string

const (
	SKUNotFound            NotFoundError = "sku-not-found"
	CartNotFound           NotFoundError = "cart-not-found"
	DiscountCodeNotFound   NotFoundError = "discount-code-not-found"
	ShippingMethodNotFound NotFoundError = "shipping-method-not-found"
	OrderNotFound          NotFoundError = "order-not-found"
)

func (e NotFoundError) Error() string {
	return string(e)
}

// Is lets errors.Is(CartNotFound, ErrCartNotFound) hold.
func (e NotFoundError) Is(target error) bool {
	return e == CartNotFound && target == ErrCartNotFound
}
