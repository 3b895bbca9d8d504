// Package apperr is the domain error taxonomy shared by the services and the
// HTTP layer. Services return *Error values; handlers map Kind to a status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindEmptyCart
	KindPermissionDenied
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindEmptyCart:
		return "empty_cart"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal_error"
	}
}

// StockShortfall describes an InsufficientStock failure.
type StockShortfall struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

// Error is a classified domain failure. Message is safe to show to callers;
// Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Stock   *StockShortfall
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func EmptyCart() *Error {
	return &Error{Kind: KindEmptyCart, Message: "Cart is empty"}
}

func PermissionDenied(msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// InsufficientStock builds the stock failure with the message shoppers see.
func InsufficientStock(s StockShortfall) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", s.ProductName, s.Available, s.Requested),
		Stock:   &s,
	}
}

// As returns the *Error in err's chain, wrapping unknown errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("Internal server error", err)
}

// KindOf reports the Kind of err; unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
